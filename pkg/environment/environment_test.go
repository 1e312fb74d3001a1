package environment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

func TestGetENVDefaults(t *testing.T) {
	experimentsDetails := types.ExperimentDetails{}
	GetENV(&experimentsDetails, "masternode-chaos")

	assert.Equal(t, "masternode-chaos", experimentsDetails.ExperimentName)
	assert.NotEmpty(t, experimentsDetails.RunID)
	assert.Equal(t, 8, experimentsDetails.NodeCount)
	assert.Equal(t, 10*time.Minute, experimentsDetails.Duration)
	assert.Equal(t, 10000.0, experimentsDetails.Collateral)
	assert.Equal(t, 100, experimentsDetails.MaturityBlocks)
	assert.Equal(t, 100, experimentsDetails.MempoolCeiling)
	assert.Equal(t, 60*time.Second, experimentsDetails.SettleTimeout)
	assert.Equal(t, 5*time.Minute, experimentsDetails.ReportInterval)
	assert.Equal(t, 100*time.Millisecond, experimentsDetails.DelayMin)
	assert.Equal(t, 500*time.Millisecond, experimentsDetails.DelayMax)
	assert.Equal(t, map[string]int{"mine": 50, "partition": 15, "reorg": 10, "register": 25}, experimentsDetails.Weights)
	assert.Contains(t, experimentsDetails.CriticalPatterns, "divergence")
}

func TestGetENVOverrides(t *testing.T) {
	t.Setenv("NODE_COUNT", "4")
	t.Setenv("DURATION_MINUTES", "2")
	t.Setenv("CHAOS_SEED", "77")
	t.Setenv("NODE_ENDPOINTS", "http://a:1,http://b:2")

	experimentsDetails := types.ExperimentDetails{}
	GetENV(&experimentsDetails, "consensus-soak")

	assert.Equal(t, 2*time.Minute, experimentsDetails.Duration)
	assert.Equal(t, int64(77), experimentsDetails.Seed)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, experimentsDetails.Endpoints)
	// endpoint list wins over NODE_COUNT
	assert.Equal(t, 2, experimentsDetails.NodeCount)
}

func TestLoadProfileOverlays(t *testing.T) {
	profile := `
durationMinutes: 42
nodeCount: 6
collateral: 5000
settleTimeoutSeconds: 30
weights:
  mine: 60
  partition: 40
criticalPatterns:
  - divergence
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o600))

	experimentsDetails := types.ExperimentDetails{}
	GetENV(&experimentsDetails, "masternode-chaos")
	require.NoError(t, LoadProfile(&experimentsDetails, path))

	assert.Equal(t, 42*time.Minute, experimentsDetails.Duration)
	assert.Equal(t, 6, experimentsDetails.NodeCount)
	assert.Equal(t, 5000.0, experimentsDetails.Collateral)
	assert.Equal(t, 30*time.Second, experimentsDetails.SettleTimeout)
	assert.Equal(t, 60, experimentsDetails.Weights["mine"])
	assert.Equal(t, 40, experimentsDetails.Weights["partition"])
	// untouched actions keep their defaults
	assert.Equal(t, 10, experimentsDetails.Weights["reorg"])
	assert.Equal(t, []string{"divergence"}, experimentsDetails.CriticalPatterns)
}

func TestLoadProfileMissingFile(t *testing.T) {
	experimentsDetails := types.ExperimentDetails{}
	GetENV(&experimentsDetails, "masternode-chaos")
	assert.Error(t, LoadProfile(&experimentsDetails, "/nonexistent/profile.yaml"))
}
