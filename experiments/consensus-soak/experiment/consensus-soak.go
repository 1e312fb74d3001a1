// Package experiment orchestrates the consensus soak profile: a long run of
// steady economic traffic with periodic finality blocks, masternode churn,
// consensus spot checks, probes and the occasional forced reorg, all on a
// fixed cadence rather than weighted sampling.
package experiment

import (
	"context"
	"math/rand"
	"time"

	masternodelib "github.com/myntacore/mynta-chaos-go/chaoslib/masternode/lib"
	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	paymentslib "github.com/myntacore/mynta-chaos-go/chaoslib/payments/lib"
	reorglib "github.com/myntacore/mynta-chaos-go/chaoslib/reorg/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/clients"
	"github.com/myntacore/mynta-chaos-go/pkg/events"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/masternode"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/result"
	"github.com/myntacore/mynta-chaos-go/pkg/sampler"
	"github.com/myntacore/mynta-chaos-go/pkg/scheduler"
	"github.com/myntacore/mynta-chaos-go/pkg/topology"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
	"github.com/myntacore/mynta-chaos-go/pkg/verify"
)

// cadence of the soak profile, in iterations
const (
	everyFinality  = 5
	everyMemory    = 10
	everyInvalidTx = 15
	everyChurn     = 20
	everyConsensus = 25
	everyReorg     = 100
)

// ConsensusSoak runs the fixed-cadence soak profile end to end and always
// emits exactly one report through the shared teardown path.
func ConsensusSoak(ctx context.Context, clientSets *clients.ClientSets, experimentsDetails *types.ExperimentDetails, m *metrics.Aggregator) *result.RunResult {
	resultDetails := types.ResultDetails{}
	types.SetResultAttributes(&resultDetails, experimentsDetails)

	recorder := events.NewRecorder(experimentsDetails)
	nodes := clientSets.Nodes
	topo := topology.NewController(nodes, m, 10*time.Second)
	registry := masternode.NewRegistry()
	r := rand.New(rand.NewSource(soakSeed(experimentsDetails)))
	verifier := verify.New(nodes, m, experimentsDetails.MempoolCeiling, experimentsDetails.SettleTimeout, experimentsDetails.SyncDelay)
	memSampler := sampler.New(nodes, m, 10*time.Second)

	log.InfoWithValues("[Info]: The run tunables are:", map[string]interface{}{
		"Experiment": experimentsDetails.ExperimentName,
		"RunID":      experimentsDetails.RunID,
		"Nodes":      len(nodes),
		"Duration":   experimentsDetails.Duration,
	})

	finish := func(verdict string, failStep string) *result.RunResult {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		recorder.Record(types.PostChaosCheck, "healing the network and verifying convergence")
		topo.Heal(teardownCtx)
		if err := verifier.WaitForConvergence(teardownCtx); err != nil {
			log.Warnf("[PostChaosCheck]: %v", err)
		}
		checks := verifier.Verify(teardownCtx)
		verifier.LogVerdict(checks)

		if verdict != "" {
			types.SetResultAfterCompletion(&resultDetails, verdict, failStep)
		}
		recorder.Record(types.Summary, "run complete, verdict "+resultDetails.Verdict)
		return result.Summarize(&resultDetails, m.Snapshot(), checks, registry.All())
	}

	recorder.Record(types.PreChaosCheck, "connecting the cluster into a full mesh")
	if err := topo.FullMesh(ctx); err != nil {
		log.Errorf("[PreChaosCheck]: cluster bring-up failed: %v", err)
		m.AddError("setup: " + err.Error())
		return finish(types.FailVerdict, "Cluster bring-up")
	}

	// a mature primary wallet carries the whole traffic load of the soak
	warmup := 2 * experimentsDetails.MaturityBlocks
	log.Infof("[PreChaosCheck]: mining %d warm-up blocks on %s", warmup, nodes[0].Name())
	if _, err := minelib.Mine(ctx, nodes[0], warmup, m); err != nil {
		log.Errorf("[PreChaosCheck]: warm-up mining failed: %v", err)
		m.AddError("funding: " + err.Error())
		return finish(types.FailVerdict, "Warm-up mining")
	}
	if err := verifier.WaitForConvergence(ctx); err != nil {
		log.Warnf("[PreChaosCheck]: %v", err)
	}

	sch := scheduler.New(scheduler.Config{
		Policy:         buildSoakPolicy(experimentsDetails, topo, nodes, registry, memSampler, r, m),
		Metrics:        m,
		ReportInterval: experimentsDetails.ReportInterval,
		DelayMin:       time.Second,
		DelayMax:       time.Second,
		Rand:           r,
		OnDigest:       soakDigest,
	})

	recorder.Record(types.ChaosInject, "starting the soak loop")
	if err := sch.Run(ctx, experimentsDetails.Duration); err != nil {
		if ctx.Err() != nil {
			log.Warnf("[Chaos]: run cancelled: %v", err)
			return finish(types.AbortVerdict, "Soak loop cancelled")
		}
		log.Errorf("[Chaos]: soak loop aborted: %v", err)
		return finish(types.FailVerdict, "Soak loop aborted")
	}

	return finish("", "")
}

func soakSeed(experimentsDetails *types.ExperimentDetails) int64 {
	if experimentsDetails.Seed != 0 {
		return experimentsDetails.Seed
	}
	return time.Now().UnixNano()
}

// buildSoakPolicy lays out the per-iteration traffic and the slower cadences.
// Traffic runs every iteration; finality blocks, sampling, probes, churn,
// consensus checks and reorgs fire on their own multiples.
func buildSoakPolicy(experimentsDetails *types.ExperimentDetails, topo *topology.Controller, nodes []node.Handle, registry *masternode.Registry, memSampler *sampler.Sampler, r *rand.Rand, m *metrics.Aggregator) scheduler.Policy {
	primary := nodes[0]
	last := nodes[len(nodes)-1]

	return scheduler.NewCadencePolicy(
		scheduler.CadenceRule{Every: 1, Action: &scheduler.Action{
			Name: "payment-lock",
			Run: func(ctx context.Context) error {
				return paymentslib.SimulatePaymentLock(ctx, primary, nodes[1+r.Intn(len(nodes)-1)], m)
			},
		}},
		scheduler.CadenceRule{Every: 1, Action: &scheduler.Action{
			Name: "atomic-swap",
			Run: func(ctx context.Context) error {
				return paymentslib.SimulateAtomicSwap(ctx, primary, last, r, m)
			},
		}},
		scheduler.CadenceRule{Every: 1, Action: &scheduler.Action{
			Name: "order-book",
			Run: func(ctx context.Context) error {
				return paymentslib.SimulateOrderBook(ctx, r, m)
			},
		}},
		scheduler.CadenceRule{Every: everyFinality, Action: &scheduler.Action{
			Name: "finality-block",
			Run: func(ctx context.Context) error {
				if _, err := minelib.Mine(ctx, primary, 1, m); err != nil {
					return err
				}
				m.Inc(metrics.ChainLocks, 1)
				return nil
			},
		}},
		scheduler.CadenceRule{Every: everyMemory, Action: &scheduler.Action{
			Name: "memory-sample",
			Run: func(ctx context.Context) error {
				memSampler.SampleOnce(ctx)
				return nil
			},
		}},
		scheduler.CadenceRule{Every: everyInvalidTx, Action: &scheduler.Action{
			Name: "invalid-tx-probe",
			Run: func(ctx context.Context) error {
				return paymentslib.SendInvalidTransaction(ctx, nodes[r.Intn(len(nodes))], m)
			},
		}},
		scheduler.CadenceRule{Every: everyChurn, Action: &scheduler.Action{
			Name: "masternode-churn",
			Run: func(ctx context.Context) error {
				if err := masternodelib.RegisterNext(ctx, experimentsDetails, nodes, registry, m); err != nil {
					return err
				}
				return masternodelib.Churn(ctx, registry, r, m)
			},
		}},
		scheduler.CadenceRule{Every: everyConsensus, Action: &scheduler.Action{
			Name: "consensus-check",
			Run: func(ctx context.Context) error {
				return paymentslib.CheckConsensus(ctx, nodes, m)
			},
		}},
		scheduler.CadenceRule{Every: everyReorg, Action: &scheduler.Action{
			Name: "reorg",
			Run: func(ctx context.Context) error {
				return reorglib.Simulate(ctx, topo, nodes, []int{len(nodes) - 1}, 2+r.Intn(2), experimentsDetails.SettleTimeout, m)
			},
		}},
	)
}

func soakDigest(snapshot metrics.Snapshot) {
	log.InfoWithValues("[Report]: soak digest", map[string]interface{}{
		"Elapsed":      snapshot.Elapsed.Round(time.Second),
		"BlocksMined":  snapshot.Counters[metrics.BlocksMined],
		"PaymentLocks": snapshot.Counters[metrics.PaymentLocks],
		"Swaps":        snapshot.Counters[metrics.SwapsCreated],
		"ChainLocks":   snapshot.Counters[metrics.ChainLocks],
		"Reorgs":       snapshot.Counters[metrics.Reorgs],
		"Errors":       len(snapshot.Errors),
	})
}
