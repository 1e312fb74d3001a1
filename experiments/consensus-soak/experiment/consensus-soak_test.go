package experiment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myntacore/mynta-chaos-go/pkg/clients"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

func soakDetails(duration time.Duration) *types.ExperimentDetails {
	return &types.ExperimentDetails{
		ExperimentName: "consensus-soak",
		RunID:          "test",
		NodeCount:      3,
		DryRun:         true,
		Seed:           1,
		Duration:       duration,
		Collateral:     10000,
		MaturityBlocks: 5,
		MempoolCeiling: 100,
		SettleTimeout:  2 * time.Second,
		SyncDelay:      50 * time.Millisecond,
		ReportInterval: time.Hour,
	}
}

func TestConsensusSoakDryRun(t *testing.T) {
	experimentsDetails := soakDetails(1500 * time.Millisecond)
	clientSets := clients.ClientSets{}
	require.NoError(t, clientSets.GenerateClientSets(experimentsDetails))

	runResult := ConsensusSoak(context.Background(), &clientSets, experimentsDetails, metrics.New())
	require.NotNil(t, runResult)

	assert.NotEqual(t, types.AwaitedVerdict, runResult.Details.Verdict)
	// every iteration carries traffic; the warm-up guarantees the balance
	assert.GreaterOrEqual(t, runResult.Snapshot.Counters[metrics.PaymentLocks], uint64(1))
	assert.GreaterOrEqual(t, runResult.Snapshot.Counters[metrics.SwapsCreated], uint64(1))
	assert.GreaterOrEqual(t, runResult.Snapshot.Counters[metrics.BlocksMined], uint64(10))
	assert.Contains(t, runResult.Report(), "CHAOS RUN REPORT")
}

func TestConsensusSoakCancellation(t *testing.T) {
	experimentsDetails := soakDetails(time.Hour)
	clientSets := clients.ClientSets{}
	require.NoError(t, clientSets.GenerateClientSets(experimentsDetails))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	runResult := ConsensusSoak(ctx, &clientSets, experimentsDetails, metrics.New())
	require.NotNil(t, runResult)
	assert.Equal(t, types.AbortVerdict, runResult.Details.Verdict)
	assert.NotZero(t, runResult.ExitCode(experimentsDetails.CriticalPatterns))
}
