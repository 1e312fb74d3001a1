package lib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node/simnode"
	"github.com/myntacore/mynta-chaos-go/pkg/topology"
)

func TestSimulateReorganizesTheMinorityOntoTheMajority(t *testing.T) {
	net := simnode.NewNetwork(4)
	m := metrics.New()
	topo := topology.NewController(net.Handles(), m, time.Second)
	ctx := context.Background()
	require.NoError(t, topo.FullMesh(ctx))

	// shared history before the fork
	_, err := minelib.Mine(ctx, net.Node(0), 200, m)
	require.NoError(t, err)
	baseHeight, err := net.Node(3).GetBlockCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(200), baseHeight)

	require.NoError(t, Simulate(ctx, topo, net.Handles(), []int{3}, 2, 5*time.Second, m))

	// everyone ends on the majority branch, one block past the minority's
	tip0, err := net.Node(0).GetBestBlockHash(ctx)
	require.NoError(t, err)
	for i := 1; i < 4; i++ {
		tip, err := net.Node(i).GetBestBlockHash(ctx)
		require.NoError(t, err)
		assert.Equal(t, tip0, tip, "node %d tip", i)
	}
	height, err := net.Node(3).GetBlockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, baseHeight+3, height)

	assert.Equal(t, uint64(1), m.Counter(metrics.Reorgs))
	assert.True(t, topo.IsFullMesh())
}

func TestSimulateRejectsDegenerateSubsets(t *testing.T) {
	net := simnode.NewNetwork(3)
	m := metrics.New()
	topo := topology.NewController(net.Handles(), m, time.Second)
	ctx := context.Background()

	assert.Error(t, Simulate(ctx, topo, net.Handles(), nil, 2, time.Second, m))
	assert.Error(t, Simulate(ctx, topo, net.Handles(), []int{0, 1, 2}, 2, time.Second, m))
	assert.Error(t, Simulate(ctx, topo, net.Handles(), []int{0}, 0, time.Second, m))
	assert.Zero(t, m.Counter(metrics.Reorgs))
}

func TestSimulateHealsEvenWhenMiningFails(t *testing.T) {
	net := simnode.NewNetwork(3)
	m := metrics.New()
	topo := topology.NewController(net.Handles(), m, time.Second)
	ctx := context.Background()
	require.NoError(t, topo.FullMesh(ctx))

	net.Node(2).SetUnreachable(true)
	err := Simulate(ctx, topo, net.Handles(), []int{2}, 2, time.Second, m)
	require.Error(t, err)
	assert.Zero(t, m.Counter(metrics.Reorgs))

	net.Node(2).SetUnreachable(false)
	topo.Heal(ctx)
	assert.True(t, topo.IsFullMesh())
}
