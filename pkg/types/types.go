package types

import (
	"os"
	"time"
)

const (
	// PreChaosCheck initial stage of the run, network health before chaos injection
	PreChaosCheck string = "PreChaosCheck"
	// PostChaosCheck pre-final stage of the run, convergence checks after the chaos loop
	PostChaosCheck string = "PostChaosCheck"
	// Summary final stage of the run, verdict and report emission
	Summary string = "Summary"
	// ChaosInject refers to the main chaos injection loop
	ChaosInject string = "ChaosInject"
	// AwaitedVerdict marks the start of the run
	AwaitedVerdict string = "Awaited"
	// PassVerdict marks the verdict as passed at the end of the run
	PassVerdict string = "Pass"
	// FailVerdict marks the verdict as failed at the end of the run
	FailVerdict string = "Fail"
	// AbortVerdict marks the verdict as aborted when the run is cancelled
	AbortVerdict string = "Abort"
)

// ExperimentDetails collects the tunables shared by both chaos profiles
type ExperimentDetails struct {
	ExperimentName string
	RunID          string
	Duration       time.Duration
	DebugLevel     int
	NodeCount      int
	Endpoints      []string
	RPCUser        string
	RPCPassword    string
	DryRun         bool
	Seed           int64

	// funding / masternode knobs
	Collateral     float64
	MaturityBlocks int

	// convergence knobs
	MempoolCeiling int
	SettleTimeout  time.Duration
	SyncDelay      time.Duration

	// scheduler knobs
	ReportInterval time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	Weights        map[string]int

	// observability knobs
	MetricsAddr      string
	OTELEndpoint     string
	CriticalPatterns []string
}

// ResultDetails is for collecting all the run-result-related details
type ResultDetails struct {
	Name     string
	Verdict  string
	FailStep string
}

//SetResultAttributes initialises the result details at the start of the run
func SetResultAttributes(resultDetails *ResultDetails, experimentDetails *ExperimentDetails) {
	resultDetails.Verdict = AwaitedVerdict
	resultDetails.FailStep = "N/A"
	resultDetails.Name = experimentDetails.ExperimentName
	if experimentDetails.RunID != "" {
		resultDetails.Name = resultDetails.Name + "-" + experimentDetails.RunID
	}
}

//SetResultAfterCompletion sets the result details at the end of the run
func SetResultAfterCompletion(resultDetails *ResultDetails, verdict, failStep string) {
	resultDetails.Verdict = verdict
	resultDetails.FailStep = failStep
}

// Getenv fetches the env var and returns the fallback when unset
func Getenv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	return value
}
