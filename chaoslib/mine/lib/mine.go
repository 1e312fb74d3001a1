package lib

import (
	"context"
	"math/rand"

	"github.com/palantir/stacktrace"

	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
)

//Mine requests count new blocks from the chosen node. The block-count RPC is
// atomic at the node boundary, so either the whole batch is counted or none
// of it is; per-block timestamps are sampled for later time-series analysis.
func Mine(ctx context.Context, target node.Handle, count int, m *metrics.Aggregator) ([]string, error) {
	address, err := target.GetNewAddress(ctx)
	if err != nil {
		return nil, stacktrace.Propagate(err, "unable to get mining address on %s", target.Name())
	}

	hashes, err := target.Generate(ctx, count, address)
	if err != nil {
		return nil, stacktrace.Propagate(err, "unable to mine %d blocks on %s", count, target.Name())
	}

	m.Inc(metrics.BlocksMined, uint64(count))
	for _, hash := range hashes {
		block, err := target.GetBlock(ctx, hash)
		if err != nil {
			log.Debugf("[Mine]: block %s lookup failed on %s: %v", hash, target.Name(), err)
			continue
		}
		m.AddSample(metrics.SeriesBlockTimes, float64(block.Time))
	}
	log.Tracef("[Mine]: %s mined %d blocks", target.Name(), count)
	return hashes, nil
}

//MineRandom mines a small random batch on a random node
func MineRandom(ctx context.Context, nodes []node.Handle, r *rand.Rand, m *metrics.Aggregator) error {
	target := nodes[r.Intn(len(nodes))]
	count := 1 + r.Intn(5)
	if _, err := Mine(ctx, target, count, m); err != nil {
		return err
	}
	log.Debugf("[Mine]: %s mined %d blocks", target.Name(), count)
	return nil
}
