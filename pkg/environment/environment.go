// Package environment resolves the experiment tunables, env-first with an
// optional YAML profile file layered underneath.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/myntacore/mynta-chaos-go/pkg/types"
	"github.com/myntacore/mynta-chaos-go/pkg/utils/common"
)

// default weight table of the chaos profile, cumulative-sum sampled
var defaultWeights = map[string]int{
	"mine":      50,
	"partition": 15,
	"reorg":     10,
	"register":  25,
}

//GetENV fetches all the tunables for the given experiment from the environment
func GetENV(experimentDetails *types.ExperimentDetails, expName string) {
	experimentDetails.ExperimentName = types.Getenv("EXPERIMENT_NAME", expName)
	experimentDetails.RunID = types.Getenv("RUN_ID", common.GetRunID())
	experimentDetails.DebugLevel, _ = strconv.Atoi(types.Getenv("MYNTA_DEBUG", "1"))
	experimentDetails.NodeCount, _ = strconv.Atoi(types.Getenv("NODE_COUNT", "8"))
	experimentDetails.RPCUser = types.Getenv("RPC_USER", "")
	experimentDetails.RPCPassword = types.Getenv("RPC_PASSWORD", "")
	experimentDetails.Seed, _ = strconv.ParseInt(types.Getenv("CHAOS_SEED", "0"), 10, 64)

	durationMinutes, _ := strconv.Atoi(types.Getenv("DURATION_MINUTES", "10"))
	experimentDetails.Duration = time.Duration(durationMinutes) * time.Minute

	collateral, _ := strconv.ParseFloat(types.Getenv("MASTERNODE_COLLATERAL", "10000"), 64)
	experimentDetails.Collateral = collateral
	experimentDetails.MaturityBlocks, _ = strconv.Atoi(types.Getenv("BLOCKS_TO_MATURITY", "100"))

	experimentDetails.MempoolCeiling, _ = strconv.Atoi(types.Getenv("MEMPOOL_CEILING", "100"))
	settleTimeout, _ := strconv.Atoi(types.Getenv("SETTLE_TIMEOUT", "60"))
	experimentDetails.SettleTimeout = time.Duration(settleTimeout) * time.Second
	syncDelay, _ := strconv.Atoi(types.Getenv("SYNC_DELAY", "2"))
	experimentDetails.SyncDelay = time.Duration(syncDelay) * time.Second

	reportInterval, _ := strconv.Atoi(types.Getenv("REPORT_INTERVAL", "300"))
	experimentDetails.ReportInterval = time.Duration(reportInterval) * time.Second
	delayMinMs, _ := strconv.Atoi(types.Getenv("ACTION_DELAY_MIN_MS", "100"))
	delayMaxMs, _ := strconv.Atoi(types.Getenv("ACTION_DELAY_MAX_MS", "500"))
	experimentDetails.DelayMin = time.Duration(delayMinMs) * time.Millisecond
	experimentDetails.DelayMax = time.Duration(delayMaxMs) * time.Millisecond

	experimentDetails.MetricsAddr = types.Getenv("METRICS_ADDR", "")
	experimentDetails.OTELEndpoint = types.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if endpoints := types.Getenv("NODE_ENDPOINTS", ""); endpoints != "" {
		experimentDetails.Endpoints = strings.Split(endpoints, ",")
		experimentDetails.NodeCount = len(experimentDetails.Endpoints)
	}

	experimentDetails.Weights = make(map[string]int, len(defaultWeights))
	for action, weight := range defaultWeights {
		experimentDetails.Weights[action] = weight
	}

	experimentDetails.CriticalPatterns = strings.Split(
		types.Getenv("CRITICAL_PATTERNS", "divergence,no connections,mempool backlog"), ",")
}

// Profile mirrors the YAML layout of a test profile file
type Profile struct {
	DurationMinutes int               `yaml:"durationMinutes"`
	NodeCount       int               `yaml:"nodeCount"`
	Endpoints       []string          `yaml:"endpoints"`
	RPCUser         string            `yaml:"rpcUser"`
	RPCPassword     string            `yaml:"rpcPassword"`
	Collateral      float64           `yaml:"collateral"`
	MempoolCeiling  int               `yaml:"mempoolCeiling"`
	SettleTimeoutS  int               `yaml:"settleTimeoutSeconds"`
	ReportIntervalS int               `yaml:"reportIntervalSeconds"`
	Weights         map[string]int    `yaml:"weights"`
	Critical        []string          `yaml:"criticalPatterns"`
	Extra           map[string]string `yaml:"extra"`
}

// LoadProfile overlays a YAML profile file onto already-resolved details
func LoadProfile(experimentDetails *types.ExperimentDetails, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read profile %s", path)
	}
	profile := Profile{}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return errors.Wrapf(err, "unable to parse profile %s", path)
	}

	if profile.DurationMinutes > 0 {
		experimentDetails.Duration = time.Duration(profile.DurationMinutes) * time.Minute
	}
	if profile.NodeCount > 0 {
		experimentDetails.NodeCount = profile.NodeCount
	}
	if len(profile.Endpoints) > 0 {
		experimentDetails.Endpoints = profile.Endpoints
		experimentDetails.NodeCount = len(profile.Endpoints)
	}
	if profile.RPCUser != "" {
		experimentDetails.RPCUser = profile.RPCUser
	}
	if profile.RPCPassword != "" {
		experimentDetails.RPCPassword = profile.RPCPassword
	}
	if profile.Collateral > 0 {
		experimentDetails.Collateral = profile.Collateral
	}
	if profile.MempoolCeiling > 0 {
		experimentDetails.MempoolCeiling = profile.MempoolCeiling
	}
	if profile.SettleTimeoutS > 0 {
		experimentDetails.SettleTimeout = time.Duration(profile.SettleTimeoutS) * time.Second
	}
	if profile.ReportIntervalS > 0 {
		experimentDetails.ReportInterval = time.Duration(profile.ReportIntervalS) * time.Second
	}
	for action, weight := range profile.Weights {
		experimentDetails.Weights[action] = weight
	}
	if len(profile.Critical) > 0 {
		experimentDetails.CriticalPatterns = profile.Critical
	}
	return nil
}
