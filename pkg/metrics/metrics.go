// Package metrics collects the run-wide counters, samples and the error
// log. One Aggregator instance is shared by reference between the scheduler,
// every chaos action and the background samplers; all mutation is guarded by
// a single mutex so the critical sections stay bounded.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// counter names; counters only ever increase during a run
const (
	BlocksMined          = "blocks_mined"
	PaymentLocks         = "payment_locks"
	SwapsCreated         = "swaps_created"
	SwapsClaimed         = "swaps_claimed"
	SwapsRefunded        = "swaps_refunded"
	OrdersCreated        = "orders_created"
	OrdersFilled         = "orders_filled"
	Partitions           = "network_partitions"
	Reorgs               = "reorgs_simulated"
	Registrations        = "masternodes_registered"
	MasternodeChurn      = "masternode_churn"
	ChainLocks           = "chainlocks"
	InvalidTxRejected    = "invalid_tx_rejected"
	ConsensusChecks      = "consensus_checks"
	ConsensusCheckFailed = "consensus_check_failures"
)

// sample series names
const (
	SeriesBlockTimes   = "block_times"
	SeriesHostMemoryMB = "host_memory_mb"
	SeriesNodeMemoryMB = "node_memory_mb"
)

// Sample is one timestamped reading of a series
type Sample struct {
	Time  time.Time
	Value float64
}

// Aggregator is the process-wide metric sink
type Aggregator struct {
	mu       sync.Mutex
	start    time.Time
	counters map[string]uint64
	errors   []string
	samples  map[string][]Sample

	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

// New creates an empty aggregator with its own prometheus registry
func New() *Aggregator {
	registry := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mynta",
		Subsystem: "chaos",
		Name:      "events_total",
		Help:      "Chaos events recorded by the orchestrator, by kind.",
	}, []string{"event"})
	registry.MustRegister(events)

	return &Aggregator{
		start:    time.Now(),
		counters: make(map[string]uint64),
		samples:  make(map[string][]Sample),
		registry: registry,
		events:   events,
	}
}

// Inc increments the named counter by the given amount
func (a *Aggregator) Inc(name string, by uint64) {
	a.mu.Lock()
	a.counters[name] += by
	a.mu.Unlock()
	a.events.WithLabelValues(name).Add(float64(by))
}

// Counter reads a single counter value
func (a *Aggregator) Counter(name string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[name]
}

// AddSample appends one timestamped reading to the named series
func (a *Aggregator) AddSample(series string, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples[series] = append(a.samples[series], Sample{Time: time.Now(), Value: value})
}

// AddError appends one entry to the append-only error log
func (a *Aggregator) AddError(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, message)
}

// ErrorCount returns the current length of the error log
func (a *Aggregator) ErrorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errors)
}

// Handler serves the prometheus registry for scraping
func (a *Aggregator) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// Snapshot is an immutable copy of the aggregator state for reporting
type Snapshot struct {
	Start    time.Time
	Elapsed  time.Duration
	Counters map[string]uint64
	Errors   []string
	Samples  map[string][]Sample
}

// Snapshot copies out the current state; writers are only blocked for the
// duration of the copy
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	counters := make(map[string]uint64, len(a.counters))
	for name, v := range a.counters {
		counters[name] = v
	}
	errs := append([]string(nil), a.errors...)
	samples := make(map[string][]Sample, len(a.samples))
	for series, values := range a.samples {
		samples[series] = append([]Sample(nil), values...)
	}
	return Snapshot{
		Start:    a.start,
		Elapsed:  time.Since(a.start),
		Counters: counters,
		Errors:   errs,
		Samples:  samples,
	}
}

// SeriesStats returns average and max of a series from the snapshot
func (s Snapshot) SeriesStats(series string) (avg, max float64) {
	values := s.Samples[series]
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v.Value
		if v.Value > max {
			max = v.Value
		}
	}
	return sum / float64(len(values)), max
}
