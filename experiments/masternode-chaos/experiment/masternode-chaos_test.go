package experiment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myntacore/mynta-chaos-go/pkg/clients"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

func testDetails(duration time.Duration) *types.ExperimentDetails {
	return &types.ExperimentDetails{
		ExperimentName: "masternode-chaos",
		RunID:          "test",
		NodeCount:      4,
		DryRun:         true,
		Seed:           1,
		Duration:       duration,
		Collateral:     10000,
		MaturityBlocks: 10,
		MempoolCeiling: 100,
		SettleTimeout:  2 * time.Second,
		SyncDelay:      50 * time.Millisecond,
		ReportInterval: time.Hour,
		DelayMin:       10 * time.Millisecond,
		DelayMax:       20 * time.Millisecond,
	}
}

func TestMasternodeChaosDryRun(t *testing.T) {
	experimentsDetails := testDetails(100 * time.Millisecond)
	clientSets := clients.ClientSets{}
	require.NoError(t, clientSets.GenerateClientSets(experimentsDetails))

	runResult := MasternodeChaos(context.Background(), &clientSets, experimentsDetails, metrics.New())
	require.NotNil(t, runResult)

	assert.NotEqual(t, types.AwaitedVerdict, runResult.Details.Verdict)
	// the funding warm-up alone mines well past maturity
	assert.GreaterOrEqual(t, runResult.Snapshot.Counters[metrics.BlocksMined], uint64(18))

	report := runResult.Report()
	assert.Contains(t, report, "CHAOS RUN REPORT")
	assert.Contains(t, report, "VERIFICATION")
	assert.Equal(t, 1, strings.Count(report, "Verdict:"))
}

func TestMasternodeChaosCancellationStillHealsAndReports(t *testing.T) {
	experimentsDetails := testDetails(time.Hour)
	clientSets := clients.ClientSets{}
	require.NoError(t, clientSets.GenerateClientSets(experimentsDetails))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	runResult := MasternodeChaos(ctx, &clientSets, experimentsDetails, metrics.New())
	require.NotNil(t, runResult)
	assert.Equal(t, types.AbortVerdict, runResult.Details.Verdict)

	// the teardown heal runs even on cancellation
	sim := clientSets.Sim()
	require.NotNil(t, sim)
	for i := 0; i < experimentsDetails.NodeCount; i++ {
		count, err := sim.Node(i).GetConnectionCount(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1, "node %d left disconnected", i)
	}

	assert.Contains(t, runResult.Report(), "CHAOS RUN REPORT")
	assert.NotZero(t, runResult.ExitCode(experimentsDetails.CriticalPatterns))
}

func TestMasternodeChaosFailsFastOnDeadCluster(t *testing.T) {
	experimentsDetails := testDetails(time.Hour)
	clientSets := clients.ClientSets{}
	require.NoError(t, clientSets.GenerateClientSets(experimentsDetails))
	clientSets.Sim().Node(0).SetUnreachable(true)

	runResult := MasternodeChaos(context.Background(), &clientSets, experimentsDetails, metrics.New())
	require.NotNil(t, runResult)
	assert.Equal(t, types.FailVerdict, runResult.Details.Verdict)
	assert.Equal(t, "Cluster bring-up", runResult.Details.FailStep)
	assert.NotZero(t, runResult.ExitCode(nil))
}
