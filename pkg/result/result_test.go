package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
	"github.com/myntacore/mynta-chaos-go/pkg/verify"
)

func awaitedDetails() *types.ResultDetails {
	resultDetails := types.ResultDetails{}
	types.SetResultAttributes(&resultDetails, &types.ExperimentDetails{ExperimentName: "masternode-chaos", RunID: "abc"})
	return &resultDetails
}

func TestSummarizeFoldsTheVerdict(t *testing.T) {
	passed := Summarize(awaitedDetails(), metrics.New().Snapshot(), verify.Verdict{Passed: true}, nil)
	assert.Equal(t, types.PassVerdict, passed.Details.Verdict)
	assert.Zero(t, passed.ExitCode(nil))

	failed := Summarize(awaitedDetails(), metrics.New().Snapshot(), verify.Verdict{Passed: false}, nil)
	assert.Equal(t, types.FailVerdict, failed.Details.Verdict)
	assert.Equal(t, "Post-chaos convergence verification", failed.Details.FailStep)
	assert.Equal(t, 1, failed.ExitCode(nil))
}

func TestSummarizeKeepsAnExplicitVerdict(t *testing.T) {
	resultDetails := awaitedDetails()
	types.SetResultAfterCompletion(resultDetails, types.AbortVerdict, "Chaos loop cancelled")

	r := Summarize(resultDetails, metrics.New().Snapshot(), verify.Verdict{Passed: true}, nil)
	assert.Equal(t, types.AbortVerdict, r.Details.Verdict)
	assert.Equal(t, 1, r.ExitCode(nil))
}

func TestCriticalPatternFailsAPassingRun(t *testing.T) {
	m := metrics.New()
	m.AddError("verification: tip-convergence: chain-tip divergence: [a b]")

	r := Summarize(awaitedDetails(), m.Snapshot(), verify.Verdict{Passed: true}, nil)
	require.Equal(t, types.PassVerdict, r.Details.Verdict)

	patterns := []string{"divergence", "no connections", "mempool backlog"}
	assert.True(t, r.HasCriticalError(patterns))
	assert.Equal(t, 1, r.ExitCode(patterns))
	assert.Zero(t, r.ExitCode([]string{"unrelated"}))
}

func TestReportRendersEverySection(t *testing.T) {
	m := metrics.New()
	m.Inc(metrics.BlocksMined, 12)
	m.Inc(metrics.Partitions, 2)
	m.AddError("partition: disconnect node-0->node-1: boom")

	verdict := verify.Verdict{Passed: true, Checks: []verify.CheckResult{
		{Name: "tip-convergence", Passed: true, Detail: "all 4 nodes at blk"},
		{Name: "connectivity", Passed: true, Detail: "all nodes connected"},
		{Name: "mempool-backlog", Passed: true, Detail: "all mempools within ceiling 100"},
	}}
	report := Summarize(awaitedDetails(), m.Snapshot(), verdict, nil).Report()

	assert.Contains(t, report, "CHAOS RUN REPORT: masternode-chaos-abc")
	assert.Contains(t, report, "Mined: 12")
	assert.Contains(t, report, "Network partitions: 2")
	assert.Contains(t, report, "tip-convergence")
	assert.Contains(t, report, "ERRORS: 1")
	assert.Contains(t, report, "Verdict: Pass")
}
