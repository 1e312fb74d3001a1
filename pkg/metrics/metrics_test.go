package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentIncrementsSumExactly(t *testing.T) {
	a := New()

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				a.Inc(BlocksMined, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), a.Counter(BlocksMined))
}

func TestSnapshotIsImmutable(t *testing.T) {
	a := New()
	a.Inc(Reorgs, 2)
	a.AddError("first")
	a.AddSample(SeriesBlockTimes, 10)

	snap := a.Snapshot()
	a.Inc(Reorgs, 1)
	a.AddError("second")
	a.AddSample(SeriesBlockTimes, 20)

	assert.Equal(t, uint64(2), snap.Counters[Reorgs])
	assert.Len(t, snap.Errors, 1)
	assert.Len(t, snap.Samples[SeriesBlockTimes], 1)

	// mutating the snapshot must not leak back into the aggregator
	snap.Counters[Reorgs] = 99
	assert.Equal(t, uint64(3), a.Counter(Reorgs))
}

func TestErrorLogIsAppendOnlyAndOrdered(t *testing.T) {
	a := New()
	a.AddError("a")
	a.AddError("b")
	a.AddError("c")

	snap := a.Snapshot()
	require.Equal(t, 3, a.ErrorCount())
	assert.Equal(t, []string{"a", "b", "c"}, snap.Errors)
}

func TestSeriesStats(t *testing.T) {
	a := New()
	a.AddSample(SeriesNodeMemoryMB, 100)
	a.AddSample(SeriesNodeMemoryMB, 200)
	a.AddSample(SeriesNodeMemoryMB, 300)

	avg, max := a.Snapshot().SeriesStats(SeriesNodeMemoryMB)
	assert.InDelta(t, 200.0, avg, 0.001)
	assert.InDelta(t, 300.0, max, 0.001)

	avg, max = a.Snapshot().SeriesStats("missing")
	assert.Zero(t, avg)
	assert.Zero(t, max)
}
