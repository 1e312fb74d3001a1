// Package events emits structured chaos events carrying the run context,
// so a log aggregator can reconstruct the chaos timeline after the fact.
package events

import (
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

// Recorder stamps every event with the run identity
type Recorder struct {
	experimentName string
	runID          string
}

// NewRecorder builds a recorder bound to one chaos run
func NewRecorder(experimentDetails *types.ExperimentDetails) *Recorder {
	return &Recorder{
		experimentName: experimentDetails.ExperimentName,
		runID:          experimentDetails.RunID,
	}
}

// Record emits one chaos event; reason is one of the phase constants of
// pkg/types (PreChaosCheck, ChaosInject, PostChaosCheck, Summary)
func (r *Recorder) Record(reason, message string) {
	log.InfoWithValues("chaos event", map[string]interface{}{
		"Experiment": r.experimentName,
		"RunID":      r.runID,
		"Reason":     reason,
		"Message":    message,
	})
}
