// Package result assembles the run verdict and the final report. The exit
// status is non-zero iff the convergence verdict failed or the error log
// contains an entry matching a configured critical pattern.
package result

import (
	"fmt"
	"strings"

	"github.com/kyokomi/emoji"

	"github.com/myntacore/mynta-chaos-go/pkg/masternode"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
	"github.com/myntacore/mynta-chaos-go/pkg/verify"
)

// RunResult is the read-only summary of one finished chaos run
type RunResult struct {
	Details      *types.ResultDetails
	Snapshot     metrics.Snapshot
	Verdict      verify.Verdict
	Participants []masternode.Record
}

// Summarize folds the verdict into the result details
func Summarize(resultDetails *types.ResultDetails, snapshot metrics.Snapshot, verdict verify.Verdict, participants []masternode.Record) *RunResult {
	if resultDetails.Verdict == types.AwaitedVerdict {
		if verdict.Passed {
			types.SetResultAfterCompletion(resultDetails, types.PassVerdict, "N/A")
		} else {
			types.SetResultAfterCompletion(resultDetails, types.FailVerdict, "Post-chaos convergence verification")
		}
	}
	return &RunResult{
		Details:      resultDetails,
		Snapshot:     snapshot,
		Verdict:      verdict,
		Participants: participants,
	}
}

// HasCriticalError scans the error log for the configured critical patterns
func (r *RunResult) HasCriticalError(patterns []string) bool {
	for _, entry := range r.Snapshot.Errors {
		for _, pattern := range patterns {
			pattern = strings.TrimSpace(pattern)
			if pattern != "" && strings.Contains(entry, pattern) {
				return true
			}
		}
	}
	return false
}

// ExitCode derives the process exit status from the verdict and error log
func (r *RunResult) ExitCode(patterns []string) int {
	if r.Details.Verdict != types.PassVerdict {
		return 1
	}
	if r.HasCriticalError(patterns) {
		return 1
	}
	return 0
}

// Report renders the end-of-run banner in the daemon's soak report style
func (r *RunResult) Report() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)

	counter := func(name string) uint64 { return r.Snapshot.Counters[name] }

	fmt.Fprintf(&b, "\n%s\n", line)
	fmt.Fprintf(&b, "CHAOS RUN REPORT: %s\n", r.Details.Name)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Duration: %.1f minutes\n\n", r.Snapshot.Elapsed.Minutes())

	fmt.Fprintf(&b, "BLOCKS:\n  Mined: %d\n\n", counter(metrics.BlocksMined))

	fmt.Fprintf(&b, "MASTERNODES:\n")
	fmt.Fprintf(&b, "  Registered: %d\n", counter(metrics.Registrations))
	fmt.Fprintf(&b, "  Churn events: %d\n", counter(metrics.MasternodeChurn))
	fmt.Fprintf(&b, "  Records retained: %d\n\n", len(r.Participants))

	fmt.Fprintf(&b, "PAYMENTS:\n")
	fmt.Fprintf(&b, "  Payment locks: %d\n", counter(metrics.PaymentLocks))
	fmt.Fprintf(&b, "  Swaps created/claimed/refunded: %d/%d/%d\n", counter(metrics.SwapsCreated), counter(metrics.SwapsClaimed), counter(metrics.SwapsRefunded))
	fmt.Fprintf(&b, "  Orders created/filled: %d/%d\n\n", counter(metrics.OrdersCreated), counter(metrics.OrdersFilled))

	fmt.Fprintf(&b, "CHAOS EVENTS:\n")
	fmt.Fprintf(&b, "  Network partitions: %d\n", counter(metrics.Partitions))
	fmt.Fprintf(&b, "  Reorgs simulated: %d\n", counter(metrics.Reorgs))
	fmt.Fprintf(&b, "  Invalid TX rejected: %d\n\n", counter(metrics.InvalidTxRejected))

	if avg, max := r.Snapshot.SeriesStats(metrics.SeriesNodeMemoryMB); max > 0 {
		fmt.Fprintf(&b, "MEMORY (avg/max MB): %.1f / %.1f\n\n", avg, max)
	}

	fmt.Fprintf(&b, "VERIFICATION:\n")
	for _, check := range r.Verdict.Checks {
		mark := emoji.Sprint(":thumbsup:")
		if !check.Passed {
			mark = emoji.Sprint(":thumbsdown:")
		}
		fmt.Fprintf(&b, "  %-18s %s %s\n", check.Name, strings.TrimSpace(mark), check.Detail)
	}

	fmt.Fprintf(&b, "\nERRORS: %d\n", len(r.Snapshot.Errors))
	for i, entry := range r.Snapshot.Errors {
		if i == 10 {
			fmt.Fprintf(&b, "...\n")
			break
		}
		fmt.Fprintf(&b, "%s\n", entry)
	}
	fmt.Fprintf(&b, "\nVerdict: %s\n", r.Details.Verdict)
	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}
