package lib

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/node/simnode"
	"github.com/myntacore/mynta-chaos-go/pkg/topology"
)

func TestPartitionAndHealRoundTrip(t *testing.T) {
	net := simnode.NewNetwork(5)
	m := metrics.New()
	topo := topology.NewController(net.Handles(), m, time.Second)
	ctx := context.Background()
	require.NoError(t, topo.FullMesh(ctx))

	r := rand.New(rand.NewSource(11))
	require.NoError(t, PartitionAndHeal(ctx, topo, net.Handles(), r, m))

	// the action leaves the cluster exactly as connected as it found it
	assert.True(t, topo.IsFullMesh())
	assert.Equal(t, uint64(1), m.Counter(metrics.Partitions))
	assert.NotZero(t, m.Counter(metrics.BlocksMined))
}

func TestPartitionNeverIsolatesTheWholeCluster(t *testing.T) {
	// with two nodes the only legal subset size is one
	net := simnode.NewNetwork(2)
	m := metrics.New()
	topo := topology.NewController(net.Handles(), m, time.Second)
	ctx := context.Background()
	require.NoError(t, topo.FullMesh(ctx))

	r := rand.New(rand.NewSource(5))
	require.NoError(t, PartitionAndHeal(ctx, topo, net.Handles(), r, m))
	assert.True(t, topo.IsFullMesh())
}
