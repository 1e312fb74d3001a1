// Package clients assembles the cluster of node handles the run drives:
// JSON-RPC clients against real daemons, or a simulated in-process network
// for dry runs and tests.
package clients

import (
	"fmt"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
	"github.com/myntacore/mynta-chaos-go/pkg/node/rpc"
	"github.com/myntacore/mynta-chaos-go/pkg/node/simnode"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

// ClientSets holds the ordered cluster; index 0 is the primary miner.
// Membership is fixed for the whole run.
type ClientSets struct {
	Nodes []node.Handle

	sim *simnode.Network
}

// GenerateClientSets builds the cluster from the experiment details
func (c *ClientSets) GenerateClientSets(experimentDetails *types.ExperimentDetails) error {
	if experimentDetails.DryRun {
		c.sim = simnode.NewNetwork(experimentDetails.NodeCount)
		c.Nodes = c.sim.Handles()
		return nil
	}

	if len(experimentDetails.Endpoints) == 0 {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeFatal,
			Phase:     "Setup",
			Reason:    "no node endpoints configured and dry-run not requested",
		}
	}
	for i, endpoint := range experimentDetails.Endpoints {
		c.Nodes = append(c.Nodes, rpc.New(rpc.Config{
			Name:        fmt.Sprintf("node-%d", i),
			Endpoint:    endpoint,
			PeerAddress: endpoint,
			User:        experimentDetails.RPCUser,
			Password:    experimentDetails.RPCPassword,
			Timeout:     30 * time.Second,
		}))
	}
	experimentDetails.NodeCount = len(c.Nodes)
	return nil
}

// Sim exposes the simulated network when running in dry-run mode, nil otherwise
func (c *ClientSets) Sim() *simnode.Network {
	return c.sim
}
