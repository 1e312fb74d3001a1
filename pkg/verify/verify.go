// Package verify runs the post-chaos convergence checks: after the network
// is healed and given a bounded settle window, every cluster member must
// report the same chain tip, at least one live connection and a bounded
// pending-transaction backlog.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/retry"
)

// CheckResult is the outcome of one independent convergence check
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Verdict is the conjunction of all checks
type Verdict struct {
	Passed bool
	Checks []CheckResult
}

// Verifier holds the convergence thresholds
type Verifier struct {
	nodes          []node.Handle
	metrics        *metrics.Aggregator
	mempoolCeiling int
	settleTimeout  time.Duration
	syncDelay      time.Duration
	rpcTimeout     time.Duration
}

// New builds a verifier over the cluster
func New(nodes []node.Handle, m *metrics.Aggregator, mempoolCeiling int, settleTimeout, syncDelay time.Duration) *Verifier {
	if mempoolCeiling == 0 {
		mempoolCeiling = 100
	}
	if syncDelay == 0 {
		syncDelay = 2 * time.Second
	}
	return &Verifier{
		nodes:          nodes,
		metrics:        m,
		mempoolCeiling: mempoolCeiling,
		settleTimeout:  settleTimeout,
		syncDelay:      syncDelay,
		rpcTimeout:     10 * time.Second,
	}
}

func (v *Verifier) tips(ctx context.Context) ([]string, error) {
	tips := make([]string, 0, len(v.nodes))
	for _, n := range v.nodes {
		callCtx, cancel := context.WithTimeout(ctx, v.rpcTimeout)
		tip, err := n.GetBestBlockHash(callCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		tips = append(tips, tip)
	}
	return tips, nil
}

func allEqual(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return false
		}
	}
	return true
}

// WaitForConvergence polls until every tip matches or the settle timeout
// elapses. A timeout is transient: the caller logs it and proceeds to the
// hard checks, which will state the divergence precisely.
func (v *Verifier) WaitForConvergence(ctx context.Context) error {
	attempts := uint(v.settleTimeout / v.syncDelay)
	if attempts == 0 {
		attempts = 1
	}
	err := retry.
		Times(attempts).
		Wait(v.syncDelay).
		TryWithContext(ctx, func(attempt uint) error {
			tips, err := v.tips(ctx)
			if err != nil {
				return err
			}
			if !allEqual(tips) {
				return cerrors.Error{ErrorCode: cerrors.ErrorTypeTransient, Reason: "tips not yet converged"}
			}
			return nil
		})
	if err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTimeout,
			Phase:     "PostChaosCheck",
			Reason:    fmt.Sprintf("network did not converge within %v: %v", v.settleTimeout, err),
		}
	}
	return nil
}

// Verify runs the three convergence checks. Each failing check lands in the
// error log with the divergent values so the run can be diagnosed without a
// re-run; the verdict is the conjunction of all checks.
func (v *Verifier) Verify(ctx context.Context) Verdict {
	verdict := Verdict{Passed: true}
	verdict.add(v.checkTips(ctx))
	verdict.add(v.checkConnectivity(ctx))
	verdict.add(v.checkMempools(ctx))

	for _, check := range verdict.Checks {
		if !check.Passed {
			v.metrics.AddError(fmt.Sprintf("verification: %s: %s", check.Name, check.Detail))
		}
	}
	return verdict
}

func (verdict *Verdict) add(check CheckResult) {
	verdict.Checks = append(verdict.Checks, check)
	if !check.Passed {
		verdict.Passed = false
	}
}

func (v *Verifier) checkTips(ctx context.Context) CheckResult {
	check := CheckResult{Name: "tip-convergence"}
	tips, err := v.tips(ctx)
	if err != nil {
		check.Detail = fmt.Sprintf("tip query failed: %v", err)
		return check
	}
	if !allEqual(tips) {
		check.Detail = fmt.Sprintf("chain-tip divergence: %v", tips)
		return check
	}
	check.Passed = true
	check.Detail = fmt.Sprintf("all %d nodes at %s", len(tips), tips[0])
	return check
}

func (v *Verifier) checkConnectivity(ctx context.Context) CheckResult {
	check := CheckResult{Name: "connectivity", Passed: true}
	var isolated []string
	for _, n := range v.nodes {
		callCtx, cancel := context.WithTimeout(ctx, v.rpcTimeout)
		count, err := n.GetConnectionCount(callCtx)
		cancel()
		if err != nil {
			check.Passed = false
			isolated = append(isolated, fmt.Sprintf("%s: query failed: %v", n.Name(), err))
			continue
		}
		if count < 1 {
			check.Passed = false
			isolated = append(isolated, fmt.Sprintf("%s has no connections", n.Name()))
		}
	}
	if !check.Passed {
		check.Detail = strings.Join(isolated, "; ")
	} else {
		check.Detail = "all nodes connected"
	}
	return check
}

func (v *Verifier) checkMempools(ctx context.Context) CheckResult {
	check := CheckResult{Name: "mempool-backlog", Passed: true}
	var stuck []string
	for _, n := range v.nodes {
		callCtx, cancel := context.WithTimeout(ctx, v.rpcTimeout)
		mempool, err := n.GetRawMempool(callCtx)
		cancel()
		if err != nil {
			check.Passed = false
			stuck = append(stuck, fmt.Sprintf("%s: query failed: %v", n.Name(), err))
			continue
		}
		if len(mempool) > v.mempoolCeiling {
			check.Passed = false
			stuck = append(stuck, fmt.Sprintf("%s mempool backlog: %d > %d", n.Name(), len(mempool), v.mempoolCeiling))
		}
	}
	if !check.Passed {
		check.Detail = strings.Join(stuck, "; ")
	} else {
		check.Detail = fmt.Sprintf("all mempools within ceiling %d", v.mempoolCeiling)
	}
	return check
}

// LogVerdict writes the per-check outcomes at the end of the run
func (v *Verifier) LogVerdict(verdict Verdict) {
	for _, check := range verdict.Checks {
		if check.Passed {
			log.Infof("[PostChaosCheck]: %s passed: %s", check.Name, check.Detail)
		} else {
			log.Errorf("[PostChaosCheck]: %s FAILED: %s", check.Name, check.Detail)
		}
	}
}
