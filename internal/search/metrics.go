package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchRequests = "user_search_requests_total"
	MetricSearchFailures = "user_search_failures_total"
	MetricSearchDuration = "user_search_duration_seconds"
	MetricSearchResults  = "user_search_results"
)

// Metrics contains Prometheus metrics for user search.
// All operations are thread-safe. A nil *Metrics is a valid no-op.
type Metrics struct {
	requests prometheus.Counter
	failures prometheus.Counter
	duration prometheus.Histogram
	results  prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSearchRequests,
			Help: "Total number of user search requests with a non-empty query",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSearchFailures,
			Help: "Total number of user searches that failed open to an empty result",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchDuration,
			Help:    "Histogram of user search duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchResults,
			Help:    "Histogram of the number of users returned per search",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.failures,
		m.duration,
		m.results,
	}
}

func (m *Metrics) observe(seconds float64, results int) {
	if m == nil {
		return
	}
	m.requests.Inc()
	m.duration.Observe(seconds)
	m.results.Observe(float64(results))
}

func (m *Metrics) incFailures() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
