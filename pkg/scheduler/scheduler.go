// Package scheduler drives the time-bounded chaos loop: per iteration it
// asks the policy for the due actions, executes them with fault isolation,
// emits a periodic digest and sleeps a jittered delay to bound the RPC rate.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/telemetry"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/common"
)

// Scheduler runs one chaos loop to completion
type Scheduler struct {
	policy         Policy
	metrics        *metrics.Aggregator
	reportInterval time.Duration
	delayMin       time.Duration
	delayMax       time.Duration
	r              *rand.Rand
	onDigest       func(metrics.Snapshot)
}

// Config carries the scheduler knobs
type Config struct {
	Policy         Policy
	Metrics        *metrics.Aggregator
	ReportInterval time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	Rand           *rand.Rand
	// OnDigest receives the periodic metric snapshot; nil disables digests
	OnDigest func(metrics.Snapshot)
}

// New builds a scheduler from the config
func New(cfg Config) *Scheduler {
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		policy:         cfg.Policy,
		metrics:        cfg.Metrics,
		reportInterval: cfg.ReportInterval,
		delayMin:       cfg.DelayMin,
		delayMax:       cfg.DelayMax,
		r:              r,
		onDigest:       cfg.OnDigest,
	}
}

// Run executes the loop until the duration elapses or ctx is cancelled.
// Only fatal faults and cancellation end the loop early; everything below
// critical is logged and the loop proceeds to the next iteration.
func (s *Scheduler) Run(ctx context.Context, duration time.Duration) error {
	deadline := time.Now().Add(duration)
	lastDigest := time.Now()
	iteration := 0

	log.Infof("[Chaos]: starting chaos loop for %v", duration)
	for time.Now().Before(deadline) {
		// cancellation is observed at the top of every iteration
		select {
		case <-ctx.Done():
			log.Warn("[Chaos]: cancellation observed, stopping the loop")
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeFatal, Phase: "ChaosInject", Reason: "run cancelled"}
		default:
		}

		iteration++
		for _, action := range s.policy.Next(iteration) {
			if err := s.execute(ctx, iteration, action); err != nil {
				return err
			}
		}

		if s.onDigest != nil && s.reportInterval > 0 && time.Since(lastDigest) >= s.reportInterval {
			s.onDigest(s.metrics.Snapshot())
			lastDigest = time.Now()
		}

		if s.delayMax > 0 {
			common.WaitForDurationContext(ctx, common.RandomInterval(s.r, s.delayMin, s.delayMax))
		}
	}
	log.Infof("[Chaos]: chaos loop complete after %d iterations", iteration)
	return nil
}

// execute runs one action and classifies its fault per the error taxonomy.
// A non-nil return means a fatal fault that must abort the loop.
func (s *Scheduler) execute(ctx context.Context, iteration int, action *Action) error {
	actionCtx, span := telemetry.StartSpan(ctx, "chaos.action."+action.Name)
	defer span.End()

	err := action.Run(actionCtx)
	if err == nil {
		log.Tracef("[Chaos]: iteration %d: action %s done", iteration, action.Name)
		return nil
	}

	switch cerrors.Classify(err) {
	case cerrors.ErrorTypeTransient, cerrors.ErrorTypeTimeout:
		// expected steady-state conditions, not counted toward the verdict
		log.Debugf("[Chaos]: action %s transient: %v", action.Name, err)
	case cerrors.ErrorTypeCritical:
		log.ErrorWithValues("[Chaos]: action critical failure", map[string]interface{}{
			"Action":    action.Name,
			"Iteration": iteration,
			"Error":     err.Error(),
		})
		s.metrics.AddError(fmt.Sprintf("%s: %v", action.Name, err))
	case cerrors.ErrorTypeFatal:
		s.metrics.AddError(fmt.Sprintf("%s: %v", action.Name, err))
		return err
	default:
		log.Warnf("[Chaos]: action %s failed: %v", action.Name, err)
		s.metrics.AddError(fmt.Sprintf("%s: %v", action.Name, err))
	}
	return nil
}
