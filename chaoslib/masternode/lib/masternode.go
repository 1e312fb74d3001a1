// Package lib implements the masternode lifecycle actions: funding a
// collateral, submitting the registration, and churning registered
// participants between states.
package lib

import (
	"context"
	"math/rand"

	"github.com/palantir/stacktrace"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/masternode"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

// RegisterParticipant funds and registers nodeIdx as a masternode. It is a
// no-op when the node already holds an active record or cannot cover the
// collateral; both cases return (false, nil) so callers can move on to the
// next candidate. True is returned only after the registry accepted the
// record, which keeps registrations at most one per node.
func RegisterParticipant(ctx context.Context, experimentsDetails *types.ExperimentDetails, target node.Handle, nodeIdx int, registry *masternode.Registry, m *metrics.Aggregator) (bool, error) {
	if registry.Has(nodeIdx) {
		return false, nil
	}

	balance, err := target.GetBalance(ctx)
	if err != nil {
		return false, stacktrace.Propagate(err, "unable to read balance on %s", target.Name())
	}
	if balance < experimentsDetails.Collateral {
		log.Debugf("[Register]: %s balance %.2f below collateral %.2f, skipping", target.Name(), balance, experimentsDetails.Collateral)
		return false, nil
	}

	address, err := target.GetNewAddress(ctx)
	if err != nil {
		return false, stacktrace.Propagate(err, "unable to get collateral address on %s", target.Name())
	}
	collateralTxid, err := target.SendToAddress(ctx, address, experimentsDetails.Collateral)
	if err != nil {
		return false, stacktrace.Propagate(err, "unable to lock collateral on %s", target.Name())
	}
	proTxHash, err := target.ProTxRegister(ctx, collateralTxid, address)
	if err != nil {
		return false, stacktrace.Propagate(err, "protx register failed on %s", target.Name())
	}

	if err := registry.Register(nodeIdx, collateralTxid, proTxHash, address); err != nil {
		return false, err
	}
	m.Inc(metrics.Registrations, 1)
	log.Infof("[Register]: %s registered as masternode, protx %s", target.Name(), proTxHash)
	return true, nil
}

// RegisterNext registers the first eligible unregistered node and confirms
// the registration with one block on the primary node. With every index
// registered it is a no-op.
func RegisterNext(ctx context.Context, experimentsDetails *types.ExperimentDetails, nodes []node.Handle, registry *masternode.Registry, m *metrics.Aggregator) error {
	for _, idx := range registry.Unregistered(len(nodes)) {
		registered, err := RegisterParticipant(ctx, experimentsDetails, nodes[idx], idx, registry, m)
		if err != nil {
			return err
		}
		if registered {
			if _, err := minelib.Mine(ctx, nodes[0], 1, m); err != nil {
				return stacktrace.Propagate(err, "unable to confirm registration of %s", nodes[idx].Name())
			}
			return nil
		}
	}
	return nil
}

// Churn advances the lifecycle of one random active participant: registered
// participants become enabled, enabled ones are either kept or revoked.
// Revocation retires the record and frees the index for re-registration.
func Churn(ctx context.Context, registry *masternode.Registry, r *rand.Rand, m *metrics.Aggregator) error {
	active := registry.Active()
	if len(active) == 0 {
		return nil
	}
	rec := active[r.Intn(len(active))]

	next := rec.Status
	switch rec.Status {
	case masternode.StatusRegistered:
		next = masternode.StatusEnabled
	case masternode.StatusEnabled:
		if r.Intn(2) == 0 {
			next = masternode.StatusRevoked
		}
	}
	if next == rec.Status {
		return nil
	}
	if err := registry.SetStatus(rec.NodeIndex, next); err != nil {
		return err
	}
	m.Inc(metrics.MasternodeChurn, 1)
	log.Debugf("[Churn]: masternode on node %d moved %s -> %s", rec.NodeIndex, rec.Status, next)
	return nil
}
