// Package experiment orchestrates the masternode chaos profile: bring the
// cluster to a funded steady state, run the weighted chaos loop for the
// configured duration, then heal, verify convergence and emit the report.
package experiment

import (
	"context"
	"math/rand"
	"time"

	masternodelib "github.com/myntacore/mynta-chaos-go/chaoslib/masternode/lib"
	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	netsplitlib "github.com/myntacore/mynta-chaos-go/chaoslib/netsplit/lib"
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

// MasternodeChaos runs the weighted chaos profile end to end. It always
// returns a result: fatal setup faults, cancellation and clean completion
// all flow through the same heal-verify-report teardown, so the report is
// emitted exactly once per run no matter how the loop ended.
func MasternodeChaos(ctx context.Context, clientSets *clients.ClientSets, experimentsDetails *types.ExperimentDetails, m *metrics.Aggregator) *result.RunResult {
	resultDetails := types.ResultDetails{}
	types.SetResultAttributes(&resultDetails, experimentsDetails)

	recorder := events.NewRecorder(experimentsDetails)
	nodes := clientSets.Nodes
	topo := topology.NewController(nodes, m, 10*time.Second)
	registry := masternode.NewRegistry()
	r := rand.New(rand.NewSource(seed(experimentsDetails)))
	verifier := verify.New(nodes, m, experimentsDetails.MempoolCeiling, experimentsDetails.SettleTimeout, experimentsDetails.SyncDelay)

	log.InfoWithValues("[Info]: The run tunables are:", map[string]interface{}{
		"Experiment": experimentsDetails.ExperimentName,
		"RunID":      experimentsDetails.RunID,
		"Nodes":      len(nodes),
		"Duration":   experimentsDetails.Duration,
		"Weights":    experimentsDetails.Weights,
	})

	// teardown is shared by every exit path, including setup failures; the
	// heal and the verification get a fresh context because the run context
	// may already be cancelled by the time we get here
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

	// [PreReq]: full mesh bring-up
	recorder.Record(types.PreChaosCheck, "connecting the cluster into a full mesh")
	if err := topo.FullMesh(ctx); err != nil {
		log.Errorf("[PreChaosCheck]: cluster bring-up failed: %v", err)
		m.AddError("setup: " + err.Error())
		return finish(types.FailVerdict, "Cluster bring-up")
	}

	// [PreReq]: mine past maturity and distribute collateral
	if err := setupFunds(ctx, experimentsDetails, nodes, verifier, m); err != nil {
		log.Errorf("[PreChaosCheck]: funding failed: %v", err)
		m.AddError("funding: " + err.Error())
		return finish(types.FailVerdict, "Masternode funding")
	}

	// initial registrations; nodes that cannot register yet are picked up by
	// the register action during the loop
	for _, idx := range registry.Unregistered(len(nodes)) {
		registered, err := masternodelib.RegisterParticipant(ctx, experimentsDetails, nodes[idx], idx, registry, m)
		if err != nil {
			log.Warnf("[PreChaosCheck]: initial registration of %s failed: %v", nodes[idx].Name(), err)
			continue
		}
		if registered {
			if _, err := minelib.Mine(ctx, nodes[0], 1, m); err != nil {
				log.Warnf("[PreChaosCheck]: registration confirm block failed: %v", err)
			}
		}
	}
	if err := verifier.WaitForConvergence(ctx); err != nil {
		log.Warnf("[PreChaosCheck]: %v", err)
	}

	memSampler := sampler.New(nodes, m, 10*time.Second)
	samplerCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()
	go memSampler.Start(samplerCtx)

	policy, err := buildPolicy(experimentsDetails, topo, nodes, registry, r, m)
	if err != nil {
		log.Errorf("[PreChaosCheck]: invalid weight table: %v", err)
		m.AddError("setup: " + err.Error())
		return finish(types.FailVerdict, "Weight table validation")
	}

	sch := scheduler.New(scheduler.Config{
		Policy:         policy,
		Metrics:        m,
		ReportInterval: experimentsDetails.ReportInterval,
		DelayMin:       experimentsDetails.DelayMin,
		DelayMax:       experimentsDetails.DelayMax,
		Rand:           r,
		OnDigest:       digest,
	})

	recorder.Record(types.ChaosInject, "starting the weighted chaos loop")
	if err := sch.Run(ctx, experimentsDetails.Duration); err != nil {
		if ctx.Err() != nil {
			log.Warnf("[Chaos]: run cancelled: %v", err)
			return finish(types.AbortVerdict, "Chaos loop cancelled")
		}
		log.Errorf("[Chaos]: chaos loop aborted: %v", err)
		return finish(types.FailVerdict, "Chaos loop aborted")
	}
	stopSampler()

	return finish("", "")
}

func seed(experimentsDetails *types.ExperimentDetails) int64 {
	if experimentsDetails.Seed != 0 {
		return experimentsDetails.Seed
	}
	return time.Now().UnixNano()
}

// setupFunds mines the primary node past coinbase maturity with headroom for
// the distribution spends, then gives every other node its collateral plus a
// small fee reserve and waits for the cluster to absorb the distribution.
func setupFunds(ctx context.Context, experimentsDetails *types.ExperimentDetails, nodes []node.Handle, verifier *verify.Verifier, m *metrics.Aggregator) error {
	warmup := experimentsDetails.MaturityBlocks + 2*len(nodes)
	log.Infof("[PreChaosCheck]: mining %d warm-up blocks on %s", warmup, nodes[0].Name())
	if _, err := minelib.Mine(ctx, nodes[0], warmup, m); err != nil {
		return err
	}

	for i := 1; i < len(nodes); i++ {
		address, err := nodes[i].GetNewAddress(ctx)
		if err != nil {
			return err
		}
		if _, err := nodes[0].SendToAddress(ctx, address, experimentsDetails.Collateral+10); err != nil {
			return err
		}
	}
	// one confirmation block so the distributed outputs are spendable
	if _, err := minelib.Mine(ctx, nodes[0], 1, m); err != nil {
		return err
	}
	if err := verifier.WaitForConvergence(ctx); err != nil {
		log.Warnf("[PreChaosCheck]: funding distribution still propagating: %v", err)
	}
	return nil
}

// buildPolicy wires the four chaos actions under the configured weight table
func buildPolicy(experimentsDetails *types.ExperimentDetails, topo *topology.Controller, nodes []node.Handle, registry *masternode.Registry, r *rand.Rand, m *metrics.Aggregator) (scheduler.Policy, error) {
	weight := func(name string, fallback int) int {
		if w, ok := experimentsDetails.Weights[name]; ok {
			return w
		}
		return fallback
	}

	return scheduler.NewWeightedPolicy(r,
		&scheduler.Action{
			Name:   "mine",
			Weight: weight("mine", 50),
			Run: func(ctx context.Context) error {
				return minelib.MineRandom(ctx, nodes, r, m)
			},
		},
		&scheduler.Action{
			Name:   "partition",
			Weight: weight("partition", 15),
			Run: func(ctx context.Context) error {
				return netsplitlib.PartitionAndHeal(ctx, topo, nodes, r, m)
			},
		},
		&scheduler.Action{
			Name:   "reorg",
			Weight: weight("reorg", 10),
			Run: func(ctx context.Context) error {
				return reorglib.SimulateRandom(ctx, topo, nodes, r, experimentsDetails.SettleTimeout, m)
			},
		},
		&scheduler.Action{
			Name:   "register",
			Weight: weight("register", 25),
			Run: func(ctx context.Context) error {
				return masternodelib.RegisterNext(ctx, experimentsDetails, nodes, registry, m)
			},
		},
	)
}

func digest(snapshot metrics.Snapshot) {
	log.InfoWithValues("[Report]: chaos digest", map[string]interface{}{
		"Elapsed":       snapshot.Elapsed.Round(time.Second),
		"BlocksMined":   snapshot.Counters[metrics.BlocksMined],
		"Partitions":    snapshot.Counters[metrics.Partitions],
		"Reorgs":        snapshot.Counters[metrics.Reorgs],
		"Registrations": snapshot.Counters[metrics.Registrations],
		"Errors":        len(snapshot.Errors),
	})
}
