// Package topology owns the logical connectivity graph over the cluster.
// Partition and Heal serialize on one mutex so no two topology mutations
// are ever in flight at the same time.
package topology

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/common"
)

// Controller tracks which node pairs are currently connected
type Controller struct {
	mu        sync.Mutex
	nodes     []node.Handle
	connected [][]bool
	metrics   *metrics.Aggregator
	timeout   time.Duration
}

// NewController builds a controller over the cluster; the cluster starts
// logically disconnected until FullMesh is called
func NewController(nodes []node.Handle, m *metrics.Aggregator, rpcTimeout time.Duration) *Controller {
	n := len(nodes)
	connected := make([][]bool, n)
	for i := range connected {
		connected[i] = make([]bool, n)
	}
	if rpcTimeout == 0 {
		rpcTimeout = 10 * time.Second
	}
	return &Controller{nodes: nodes, connected: connected, metrics: m, timeout: rpcTimeout}
}

// connect wires one direction of the (i, j) link; failures are non-fatal
func (c *Controller) connect(ctx context.Context, i, j int) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.nodes[i].AddNode(callCtx, c.nodes[j].PeerAddress())
}

func (c *Controller) disconnect(ctx context.Context, i, j int) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.nodes[i].DisconnectNode(callCtx, c.nodes[j].PeerAddress())
}

// FullMesh connects every node pair; a failed link during bring-up is fatal
// because the chaos run cannot start from a partially wired cluster
func (c *Controller) FullMesh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.nodes); i++ {
		for j := i + 1; j < len(c.nodes); j++ {
			if err := c.connect(ctx, i, j); err != nil {
				return cerrors.Error{
					ErrorCode: cerrors.ErrorTypeFatal,
					Phase:     "Setup",
					Target:    c.nodes[i].Name(),
					Reason:    fmt.Sprintf("failed to connect to %s: %v", c.nodes[j].Name(), err),
				}
			}
			c.connected[i][j], c.connected[j][i] = true, true
		}
	}
	return nil
}

// Partition disconnects every pair (i, j) with i in subset and j outside it.
// Individual link failures are logged and ignored; the partition event is
// counted as soon as the attempt is made so chaos rates stay meaningful.
func (c *Controller) Partition(ctx context.Context, subset []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.Inc(metrics.Partitions, 1)
	for _, i := range subset {
		for j := 0; j < len(c.nodes); j++ {
			if common.Contains(subset, j) {
				continue
			}
			if !c.connected[i][j] {
				continue
			}
			if err := c.disconnect(ctx, i, j); err != nil {
				log.Warnf("[Partition]: failed to disconnect %s from %s: %v", c.nodes[i].Name(), c.nodes[j].Name(), err)
				c.metrics.AddError(fmt.Sprintf("partition: disconnect %s->%s: %v", c.nodes[i].Name(), c.nodes[j].Name(), err))
			}
			c.connected[i][j], c.connected[j][i] = false, false
		}
	}
	log.Debugf("[Partition]: nodes %v isolated from the rest of the cluster", subset)
}

// Heal reconnects every node pair. It is idempotent, safe to call when some
// or all links are up, and is invoked unconditionally at teardown.
func (c *Controller) Heal(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.nodes); i++ {
		for j := i + 1; j < len(c.nodes); j++ {
			if c.connected[i][j] {
				continue
			}
			if err := c.connect(ctx, i, j); err != nil {
				log.Warnf("[Heal]: failed to reconnect %s to %s: %v", c.nodes[i].Name(), c.nodes[j].Name(), err)
				c.metrics.AddError(fmt.Sprintf("heal: connect %s->%s: %v", c.nodes[i].Name(), c.nodes[j].Name(), err))
				continue
			}
			c.connected[i][j], c.connected[j][i] = true, true
		}
	}
	log.Debugf("[Heal]: network healed, all nodes reconnected")
}

// IsFullMesh reports whether the tracked graph is the complete graph
func (c *Controller) IsFullMesh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.nodes); i++ {
		for j := i + 1; j < len(c.nodes); j++ {
			if !c.connected[i][j] {
				return false
			}
		}
	}
	return true
}

// Connected reports whether the (i, j) link is tracked as up
func (c *Controller) Connected(i, j int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[i][j]
}
