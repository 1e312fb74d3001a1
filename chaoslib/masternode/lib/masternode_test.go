package lib

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/masternode"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node/simnode"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

func details() *types.ExperimentDetails {
	return &types.ExperimentDetails{Collateral: 10000}
}

func TestRegisterSkipsUnderfundedNodes(t *testing.T) {
	net := simnode.NewNetwork(2)
	registry := masternode.NewRegistry()
	m := metrics.New()

	registered, err := RegisterParticipant(context.Background(), details(), net.Node(1), 1, registry, m)
	require.NoError(t, err)
	assert.False(t, registered)
	assert.False(t, registry.Has(1))
	assert.Zero(t, m.Counter(metrics.Registrations))
}

func TestRegisterFundedNode(t *testing.T) {
	net := simnode.NewNetwork(2)
	registry := masternode.NewRegistry()
	m := metrics.New()
	ctx := context.Background()

	// two block rewards comfortably cover the collateral
	_, err := minelib.Mine(ctx, net.Node(1), 2, m)
	require.NoError(t, err)

	registered, err := RegisterParticipant(ctx, details(), net.Node(1), 1, registry, m)
	require.NoError(t, err)
	assert.True(t, registered)
	assert.True(t, registry.Has(1))
	assert.Equal(t, uint64(1), m.Counter(metrics.Registrations))

	// a second attempt on the same index is a silent no-op
	registered, err = RegisterParticipant(ctx, details(), net.Node(1), 1, registry, m)
	require.NoError(t, err)
	assert.False(t, registered)
	assert.Equal(t, uint64(1), m.Counter(metrics.Registrations))
}

func TestRegisterNextPicksTheFirstEligibleNode(t *testing.T) {
	net := simnode.NewNetwork(3)
	registry := masternode.NewRegistry()
	m := metrics.New()
	ctx := context.Background()

	// only node 2 can afford the collateral
	_, err := minelib.Mine(ctx, net.Node(2), 3, m)
	require.NoError(t, err)

	require.NoError(t, RegisterNext(ctx, details(), net.Handles(), registry, m))
	assert.False(t, registry.Has(1))
	assert.True(t, registry.Has(2))
}

func TestChurnWalksTheLifecycle(t *testing.T) {
	registry := masternode.NewRegistry()
	m := metrics.New()
	r := rand.New(rand.NewSource(1))
	ctx := context.Background()

	require.NoError(t, Churn(ctx, registry, r, m))
	assert.Zero(t, m.Counter(metrics.MasternodeChurn))

	require.NoError(t, registry.Register(1, "tx", "protx", "addr"))
	require.NoError(t, Churn(ctx, registry, r, m))

	active := registry.Active()
	require.Len(t, active, 1)
	assert.Equal(t, masternode.StatusEnabled, active[0].Status)
	assert.Equal(t, uint64(1), m.Counter(metrics.MasternodeChurn))

	// enabled nodes eventually get revoked, freeing the index
	for i := 0; i < 64 && registry.Has(1); i++ {
		require.NoError(t, Churn(ctx, registry, r, m))
	}
	assert.False(t, registry.Has(1))
}
