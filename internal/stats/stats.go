// Package stats holds the process-wide atomic request counters and their
// Prometheus mirror for the admin endpoint. The two atomics remain the
// authoritative source of truth; the Prometheus counters are updated
// alongside them purely for external observability.
package stats

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats tracks total completed non-STATS requests and their cumulative
// processing time, in microseconds, using sequentially consistent atomic
// operations.
type Stats struct {
	totalRequests    atomic.Uint64
	totalRequestTime atomic.Uint64

	requestsCounter prometheus.Counter
	timeCounter     prometheus.Counter
}

// New creates a Stats instance. Prometheus collectors are created but not
// registered; callers register them with a registry of their choosing
// (internal/admin does this for the server's own metrics endpoint).
func New() *Stats {
	return &Stats{
		requestsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rcache_requests_total",
			Help: "Total completed non-STATS requests.",
		}),
		timeCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rcache_request_microseconds_total",
			Help: "Cumulative request processing time in microseconds.",
		}),
	}
}

// Collectors returns the Prometheus collectors backing this Stats, for
// registration with a prometheus.Registerer.
func (s *Stats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.requestsCounter, s.timeCounter}
}

// Record adds one completed request with the given elapsed time.
func (s *Stats) Record(elapsedMicros uint64) {
	s.totalRequests.Add(1)
	s.totalRequestTime.Add(elapsedMicros)
	s.requestsCounter.Inc()
	s.timeCounter.Add(float64(elapsedMicros))
}

// Snapshot is a point-in-time read of the counters.
type Snapshot struct {
	TotalRequests    uint64 `json:"total_requests"`
	TotalRequestTime uint64 `json:"total_request_time"`
	AvgRequestTime   uint64 `json:"avg_request_time"`
}

// Get reads both counters with sequentially consistent ordering (the
// default for sync/atomic) and computes the average.
func (s *Stats) Get() Snapshot {
	total := s.totalRequests.Load()
	totalTime := s.totalRequestTime.Load()
	denom := total
	if denom == 0 {
		denom = 1
	}
	return Snapshot{
		TotalRequests:    total,
		TotalRequestTime: totalTime,
		AvgRequestTime:   totalTime / denom,
	}
}

// Report renders the one-line UTF-8 stats report returned over the wire.
func (snap Snapshot) Report() string {
	return fmt.Sprintf(
		"total_requests: %d, total_request_time: %d, avg_request_time: %d",
		snap.TotalRequests, snap.TotalRequestTime, snap.AvgRequestTime,
	)
}
