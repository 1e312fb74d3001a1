package lib

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minelib "github.com/myntacore/mynta-chaos-go/chaoslib/mine/lib"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node/simnode"
)

func fundedPair(t *testing.T) (*simnode.Network, *metrics.Aggregator) {
	t.Helper()
	net := simnode.NewNetwork(2)
	m := metrics.New()
	require.NoError(t, net.Node(0).AddNode(context.Background(), net.Node(1).PeerAddress()))
	_, err := minelib.Mine(context.Background(), net.Node(0), 2, m)
	require.NoError(t, err)
	return net, m
}

func TestPaymentLockSkipsSilentlyWhenBroke(t *testing.T) {
	net := simnode.NewNetwork(2)
	m := metrics.New()

	err := SimulatePaymentLock(context.Background(), net.Node(0), net.Node(1), m)
	require.NoError(t, err)
	assert.Zero(t, m.Counter(metrics.PaymentLocks))
}

func TestPaymentLockMovesFunds(t *testing.T) {
	net, m := fundedPair(t)

	before := net.Node(1).Balance()
	require.NoError(t, SimulatePaymentLock(context.Background(), net.Node(0), net.Node(1), m))
	assert.Equal(t, uint64(1), m.Counter(metrics.PaymentLocks))
	assert.Greater(t, net.Node(1).Balance(), before)
}

func TestAtomicSwapSettlesExactlyOneWay(t *testing.T) {
	net, m := fundedPair(t)
	r := rand.New(rand.NewSource(3))

	for i := 0; i < 20; i++ {
		require.NoError(t, SimulateAtomicSwap(context.Background(), net.Node(0), net.Node(1), r, m))
	}

	created := m.Counter(metrics.SwapsCreated)
	claimed := m.Counter(metrics.SwapsClaimed)
	refunded := m.Counter(metrics.SwapsRefunded)
	assert.Equal(t, uint64(20), created)
	assert.Equal(t, created, claimed+refunded)
}

func TestAtomicSwapSkipsWhenBroke(t *testing.T) {
	net := simnode.NewNetwork(2)
	m := metrics.New()
	r := rand.New(rand.NewSource(1))

	require.NoError(t, SimulateAtomicSwap(context.Background(), net.Node(0), net.Node(1), r, m))
	assert.Zero(t, m.Counter(metrics.SwapsCreated))
}

func TestOrderBookSplitsSeventyThirty(t *testing.T) {
	m := metrics.New()
	r := rand.New(rand.NewSource(9))

	const rounds = 10000
	for i := 0; i < rounds; i++ {
		require.NoError(t, SimulateOrderBook(context.Background(), r, m))
	}
	created := float64(m.Counter(metrics.OrdersCreated))
	filled := float64(m.Counter(metrics.OrdersFilled))
	assert.Equal(t, float64(rounds), created+filled)
	assert.InDelta(t, 0.7, created/rounds, 0.03)
}

func TestInvalidTransactionIsRejected(t *testing.T) {
	net, m := fundedPair(t)

	require.NoError(t, SendInvalidTransaction(context.Background(), net.Node(0), m))
	assert.Equal(t, uint64(1), m.Counter(metrics.InvalidTxRejected))
}

func TestCheckConsensusOnAgreeingCluster(t *testing.T) {
	net, m := fundedPair(t)

	require.NoError(t, CheckConsensus(context.Background(), net.Handles(), m))
	assert.Equal(t, uint64(1), m.Counter(metrics.ConsensusChecks))
	assert.Zero(t, m.Counter(metrics.ConsensusCheckFailed))
}

func TestCheckConsensusFlagsDivergence(t *testing.T) {
	net := simnode.NewNetwork(2)
	m := metrics.New()
	ctx := context.Background()

	// two isolated nodes with different histories
	addr, err := net.Node(0).GetNewAddress(ctx)
	require.NoError(t, err)
	_, err = net.Node(0).Generate(ctx, 1, addr)
	require.NoError(t, err)

	err = CheckConsensus(ctx, net.Handles(), m)
	require.Error(t, err)
	assert.Equal(t, uint64(1), m.Counter(metrics.ConsensusCheckFailed))
	assert.Equal(t, 1, m.ErrorCount())
}
