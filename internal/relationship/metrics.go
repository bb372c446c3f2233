package relationship

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricTransitions   = "relationship_transitions_total"
	MetricErrors        = "relationship_errors_total"
	MetricPublishErrors = "relationship_event_publish_errors_total"
)

// Metrics contains Prometheus metrics for graph transitions.
// All operations are thread-safe. A nil *Metrics is a valid no-op.
type Metrics struct {
	transitions   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	publishErrors prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTransitions,
				Help: "Total number of relationship operations by operation and resulting outcome",
			},
			[]string{"operation", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricErrors,
				Help: "Total number of relationship operations that failed in storage",
			},
			[]string{"operation"},
		),
		publishErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricPublishErrors,
				Help: "Total number of relationship events that could not be published",
			},
		),
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
		m.transitions,
		m.errors,
		m.publishErrors,
	}
}

func (m *Metrics) incTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) incError(operation string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(operation).Inc()
}

func (m *Metrics) incPublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}
