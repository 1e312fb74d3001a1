// Package sampler periodically reads host and node memory and feeds the
// readings into the metrics aggregator. Timers are best effort: "at least
// every interval, skew permitted" is the bar, not hard real time.
package sampler

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/mem"

	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
)

// nodes past this reported usage get a warning in the log
const highMemoryMB = 500.0

// Sampler owns the background memory sampling loop
type Sampler struct {
	nodes      []node.Handle
	metrics    *metrics.Aggregator
	interval   time.Duration
	rpcTimeout time.Duration
}

// New builds a sampler over the cluster
func New(nodes []node.Handle, m *metrics.Aggregator, interval time.Duration) *Sampler {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &Sampler{nodes: nodes, metrics: m, interval: interval, rpcTimeout: 10 * time.Second}
}

// Start runs the sampling loop until ctx is cancelled
func (s *Sampler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SampleOnce(ctx)
		}
	}
}

// SampleOnce takes one round of host and per-node memory readings.
// Read failures are logged and skipped; sampling never fails the run.
func (s *Sampler) SampleOnce(ctx context.Context) {
	if vm, err := mem.VirtualMemory(); err == nil {
		s.metrics.AddSample(metrics.SeriesHostMemoryMB, float64(vm.Used)/(1024*1024))
	} else {
		log.Debugf("[Sample]: host memory read failed: %v", err)
	}

	for _, n := range s.nodes {
		callCtx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
		info, err := n.GetMemoryInfo(callCtx)
		cancel()
		if err != nil {
			log.Debugf("[Sample]: %s memory query failed: %v", n.Name(), err)
			continue
		}
		usedMB := float64(info.Used) / (1024 * 1024)
		s.metrics.AddSample(metrics.SeriesNodeMemoryMB, usedMB)
		if usedMB > highMemoryMB {
			log.Warnf("[Sample]: %s high memory usage: %.1f MB", n.Name(), usedMB)
		}
		log.Tracef("[Sample]: %s memory: %.1f MB", n.Name(), usedMB)
	}
}
