// Package lib implements the partition action: isolate a small random
// subset of the cluster, let both sides build divergent history for a short
// dwell, then reconnect the full mesh.
package lib

import (
	"context"
	"math/rand"
	"time"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/topology"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/common"
)

// PartitionAndHeal splits off between one and three nodes (never the whole
// cluster), dwells one to three seconds while both sides mine, and heals.
// The heal runs even when the dwell-phase mining fails; link-level failures
// inside Partition are already absorbed by the topology controller.
func PartitionAndHeal(ctx context.Context, topo *topology.Controller, nodes []node.Handle, r *rand.Rand, m *metrics.Aggregator) error {
	size := 1 + r.Intn(common.Minimum(3, len(nodes)-1))
	subset := common.RandomSubset(r, len(nodes), size)

	log.InfoWithValues("[Chaos]: partitioning the cluster", map[string]interface{}{
		"Subset": subset,
		"Size":   size,
	})
	topo.Partition(ctx, subset)

	common.WaitForDurationContext(ctx, common.RandomInterval(r, time.Second, 3*time.Second))

	// divergent history on both sides so the heal exercises reconciliation
	if _, err := minelib.Mine(ctx, nodes[subset[0]], 1+r.Intn(3), m); err != nil {
		log.Debugf("[Chaos]: isolated side mining failed: %v", err)
	}
	if majority := firstOutside(subset, len(nodes)); majority >= 0 {
		if _, err := minelib.Mine(ctx, nodes[majority], 1+r.Intn(3), m); err != nil {
			log.Debugf("[Chaos]: majority side mining failed: %v", err)
		}
	}

	topo.Heal(ctx)
	return nil
}

func firstOutside(subset []int, count int) int {
	for i := 0; i < count; i++ {
		if !common.Contains(subset, i) {
			return i
		}
	}
	return -1
}
