// Package lib implements the forced chain reorganization: an isolated
// minority mines a short branch while the majority mines a strictly longer
// one, so the heal deterministically reorganizes the minority onto the
// majority chain.
package lib

import (
	"context"
	"math/rand"
	"time"

	"github.com/palantir/stacktrace"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/topology"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/common"
	"github.com/myntacore/mynta-chaos-go/pkg/verify"
)

// Simulate isolates the given subset, mines depth blocks on the isolated
// side and depth+1 on the majority side, heals, and waits out the resync.
// The heal always runs; a sync that misses the settle window is transient
// because the scheduled convergence checks will catch a real divergence.
func Simulate(ctx context.Context, topo *topology.Controller, nodes []node.Handle, isolated []int, depth int, settleTimeout time.Duration, m *metrics.Aggregator) error {
	if len(isolated) == 0 || len(isolated) >= len(nodes) || depth < 1 {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Phase:     "ChaosInject",
			Reason:    "reorg needs a non-empty strict subset and a positive depth",
		}
	}

	log.InfoWithValues("[Chaos]: simulating chain reorganization", map[string]interface{}{
		"Isolated": isolated,
		"Depth":    depth,
	})
	topo.Partition(ctx, isolated)

	var mineErr error
	if _, err := minelib.Mine(ctx, nodes[isolated[0]], depth, m); err != nil {
		mineErr = stacktrace.Propagate(err, "isolated branch mining failed")
	} else if majority := majorityIndex(isolated, len(nodes)); majority >= 0 {
		// the majority branch is one block longer so it always wins the heal
		if _, err := minelib.Mine(ctx, nodes[majority], depth+1, m); err != nil {
			mineErr = stacktrace.Propagate(err, "majority branch mining failed")
		}
	}

	topo.Heal(ctx)
	if mineErr != nil {
		return mineErr
	}
	m.Inc(metrics.Reorgs, 1)

	verifier := verify.New(nodes, m, 0, settleTimeout, 0)
	if err := verifier.WaitForConvergence(ctx); err != nil {
		log.Warnf("[Chaos]: post-reorg sync missed the settle window: %v", err)
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTransient,
			Phase:     "ChaosInject",
			Reason:    "post-reorg resync still in progress",
		}
	}
	log.Debugf("[Chaos]: reorg of depth %d reconciled", depth)
	return nil
}

// SimulateRandom isolates the first node with a random depth between 2 and 5
func SimulateRandom(ctx context.Context, topo *topology.Controller, nodes []node.Handle, r *rand.Rand, settleTimeout time.Duration, m *metrics.Aggregator) error {
	return Simulate(ctx, topo, nodes, []int{0}, 2+r.Intn(4), settleTimeout, m)
}

func majorityIndex(isolated []int, count int) int {
	for i := 0; i < count; i++ {
		if !common.Contains(isolated, i) {
			return i
		}
	}
	return -1
}
