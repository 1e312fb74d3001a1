// Package lib implements the economic traffic actions that keep the cluster
// busy during soak runs: instant payment locks, HTLC atomic swaps, order
// book activity, consensus spot checks and the invalid transaction probe.
package lib

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/palantir/stacktrace"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
)

const (
	paymentAmount     = 0.1
	swapAmount        = 0.5
	minSwapBalance    = 1.0
	htlcTimeoutBlocks = 720
	claimProbability  = 0.8
	createProbability = 0.7
)

// SimulatePaymentLock sends one small instant payment from sender to a fresh
// address on receiver. Insufficient balance is a silent skip, not a fault.
func SimulatePaymentLock(ctx context.Context, sender, receiver node.Handle, m *metrics.Aggregator) error {
	balance, err := sender.GetBalance(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to read balance on %s", sender.Name())
	}
	if balance < paymentAmount {
		log.Tracef("[Payment]: %s balance %.4f too low, skipping payment lock", sender.Name(), balance)
		return nil
	}

	address, err := receiver.GetNewAddress(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to get receive address on %s", receiver.Name())
	}
	txid, err := sender.SendToAddress(ctx, address, paymentAmount)
	if err != nil {
		return stacktrace.Propagate(err, "payment lock send failed on %s", sender.Name())
	}
	m.Inc(metrics.PaymentLocks, 1)
	log.Tracef("[Payment]: payment lock %s, %s -> %s", txid, sender.Name(), receiver.Name())
	return nil
}

// SimulateAtomicSwap runs one HTLC round between maker and taker. The claim
// versus refund branch is drawn only after the create succeeded, so the
// outcome split reflects completed swaps.
func SimulateAtomicSwap(ctx context.Context, maker, taker node.Handle, r *rand.Rand, m *metrics.Aggregator) error {
	balance, err := maker.GetBalance(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to read balance on %s", maker.Name())
	}
	if balance < minSwapBalance {
		log.Tracef("[Swap]: %s balance %.4f too low, skipping swap", maker.Name(), balance)
		return nil
	}

	receiver, err := taker.GetNewAddress(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to get swap address on %s", taker.Name())
	}
	preimage := fmt.Sprintf("%016x%016x", r.Uint64(), r.Uint64())
	digest := sha256.Sum256([]byte(preimage))
	hashLock := hex.EncodeToString(digest[:])
	htlc, err := maker.HTLCCreate(ctx, receiver, swapAmount, hashLock, htlcTimeoutBlocks)
	if err != nil {
		return stacktrace.Propagate(err, "htlc create failed on %s", maker.Name())
	}
	m.Inc(metrics.SwapsCreated, 1)

	if r.Float64() < claimProbability {
		if _, err := taker.HTLCClaim(ctx, htlc.Txid, preimage); err != nil {
			return stacktrace.Propagate(err, "htlc claim failed on %s", taker.Name())
		}
		m.Inc(metrics.SwapsClaimed, 1)
		log.Tracef("[Swap]: htlc %s claimed by %s", htlc.Txid, taker.Name())
		return nil
	}
	if _, err := maker.HTLCRefund(ctx, htlc.Txid); err != nil {
		return stacktrace.Propagate(err, "htlc refund failed on %s", maker.Name())
	}
	m.Inc(metrics.SwapsRefunded, 1)
	log.Tracef("[Swap]: htlc %s refunded to %s", htlc.Txid, maker.Name())
	return nil
}

// SimulateOrderBook records one order book event, split seventy/thirty
// between creating and filling
func SimulateOrderBook(ctx context.Context, r *rand.Rand, m *metrics.Aggregator) error {
	if r.Float64() < createProbability {
		m.Inc(metrics.OrdersCreated, 1)
	} else {
		m.Inc(metrics.OrdersFilled, 1)
	}
	return nil
}

// SendInvalidTransaction asks the target to spend more than its balance.
// Rejection is the healthy outcome; acceptance means the wallet or consensus
// layer stopped validating and is reported as an action failure.
func SendInvalidTransaction(ctx context.Context, target node.Handle, m *metrics.Aggregator) error {
	balance, err := target.GetBalance(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to read balance on %s", target.Name())
	}
	address, err := target.GetNewAddress(ctx)
	if err != nil {
		return stacktrace.Propagate(err, "unable to get address on %s", target.Name())
	}
	txid, err := target.SendToAddress(ctx, address, balance+1000)
	if err == nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeActionFailed,
			Phase:     "ChaosInject",
			Target:    target.Name(),
			Reason:    fmt.Sprintf("overspend transaction %s was accepted", txid),
		}
	}
	m.Inc(metrics.InvalidTxRejected, 1)
	log.Tracef("[Probe]: overspend correctly rejected by %s: %v", target.Name(), err)
	return nil
}

// CheckConsensus compares heights and tips across the cluster once. A
// divergence is counted and logged; mid-run it can be a propagation race,
// the post-chaos verification is what decides the verdict.
func CheckConsensus(ctx context.Context, nodes []node.Handle, m *metrics.Aggregator) error {
	m.Inc(metrics.ConsensusChecks, 1)

	heights := make(map[int64][]string)
	tips := make(map[string]bool)
	for _, n := range nodes {
		height, err := n.GetBlockCount(ctx)
		if err != nil {
			return stacktrace.Propagate(err, "unable to read height on %s", n.Name())
		}
		tip, err := n.GetBestBlockHash(ctx)
		if err != nil {
			return stacktrace.Propagate(err, "unable to read tip on %s", n.Name())
		}
		heights[height] = append(heights[height], n.Name())
		tips[tip] = true
	}

	if len(heights) > 1 || len(tips) > 1 {
		m.Inc(metrics.ConsensusCheckFailed, 1)
		m.AddError(fmt.Sprintf("consensus spot-check divergence: heights %v, %d distinct tips", heights, len(tips)))
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTransient,
			Phase:     "ChaosInject",
			Reason:    "cluster tips diverged at spot-check",
		}
	}
	log.Tracef("[Consensus]: %d nodes agree on one tip", len(nodes))
	return nil
}
