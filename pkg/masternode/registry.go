// Package masternode tracks the simulated collateral holders registered
// during a run. Records are never deleted; churn only moves them between
// states, and the full history survives for the final report.
package masternode

import (
	"sync"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
)

// Status is the lifecycle state of one participant record
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusRegistered   Status = "registered"
	StatusEnabled      Status = "enabled"
	StatusRevoked      Status = "revoked"
)

// Record tracks one simulated masternode collateral holder
type Record struct {
	NodeIndex      int
	CollateralTxid string
	ProTxHash      string
	Address        string
	Status         Status
	RegisteredAt   time.Time
}

// Registry keeps at most one active record per node index
type Registry struct {
	mu      sync.Mutex
	active  map[int]*Record
	history []Record
}

// NewRegistry creates an empty participant registry
func NewRegistry() *Registry {
	return &Registry{active: make(map[int]*Record)}
}

// Register creates the participant record for nodeIdx. Registering a node
// index that already holds an active record is an error.
func (r *Registry) Register(nodeIdx int, collateralTxid, proTxHash, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[nodeIdx]; exists {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Reason:    "participant already registered for node index",
		}
	}
	rec := &Record{
		NodeIndex:      nodeIdx,
		CollateralTxid: collateralTxid,
		ProTxHash:      proTxHash,
		Address:        address,
		Status:         StatusRegistered,
		RegisteredAt:   time.Now(),
	}
	r.active[nodeIdx] = rec
	return nil
}

// Has reports whether nodeIdx currently holds an active record
func (r *Registry) Has(nodeIdx int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[nodeIdx]
	return ok
}

// SetStatus transitions the active record of nodeIdx. Revoking retires the
// record into history, freeing the index for a later re-registration.
func (r *Registry) SetStatus(nodeIdx int, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.active[nodeIdx]
	if !ok {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Reason:    "no active participant for node index",
		}
	}
	rec.Status = status
	if status == StatusRevoked {
		r.history = append(r.history, *rec)
		delete(r.active, nodeIdx)
	}
	return nil
}

// Active returns a copy of all records currently active, ordered by index
func (r *Registry) Active() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.active))
	for i := 0; i < r.maxIndex()+1; i++ {
		if rec, ok := r.active[i]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// All returns every record ever created: the retired history plus actives
func (r *Registry) All() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]Record(nil), r.history...)
	for i := 0; i < r.maxIndex()+1; i++ {
		if rec, ok := r.active[i]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Unregistered returns the node indices in [1, nodeCount) with no active record
func (r *Registry) Unregistered(nodeCount int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []int
	for i := 1; i < nodeCount; i++ {
		if _, ok := r.active[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (r *Registry) maxIndex() int {
	max := -1
	for i := range r.active {
		if i > max {
			max = i
		}
	}
	return max
}
