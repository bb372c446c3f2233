package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
	MetricIdempotencyRequests   = "idempotency_requests_total"
)

// Idempotency outcomes recorded on MetricIdempotencyRequests.
const (
	IdempotencyStored   = "stored"
	IdempotencyReplayed = "replayed"
	IdempotencyConflict = "conflict"
	IdempotencyReleased = "released"
	IdempotencyUnstored = "unstored"
	IdempotencyBypassed = "bypassed"
)

var (
	httpLabels      = []string{"method", "path", "status"}
	rateLimitLabels = []string{"endpoint", "key_type"}
	sizeBuckets     = prometheus.ExponentialBuckets(100, 10, 8)
)

// Metrics holds the collectors shared by the HTTP middleware. A nil *Metrics
// records nothing, so middleware can be built without a registry.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
	idempotencyRequests  *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors; call Register.
func NewMetrics() *Metrics {
	counter := func(name, help string, labels []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, httpLabels)
	}

	return &Metrics{
		rateLimitRequests: counter(MetricRateLimitRequests,
			"Rate limit checks by endpoint and key type", rateLimitLabels),
		rateLimitBlocked: counter(MetricRateLimitBlocked,
			"Requests rejected with 429 by endpoint and key type", rateLimitLabels),
		rateLimitRedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; the request was allowed",
		}),
		httpRequestDuration: histogram(MetricHTTPRequestDuration,
			"HTTP request duration in seconds", []float64{0.01, 0.05, 0.1, 0.5, 1, 2}),
		httpRequestsTotal: counter(MetricHTTPRequestsTotal,
			"HTTP requests by method, route and status", httpLabels),
		httpRequestSize: histogram(MetricHTTPRequestSizeBytes,
			"HTTP request body size in bytes", sizeBuckets),
		httpResponseSize: histogram(MetricHTTPResponseSizeBytes,
			"HTTP response body size in bytes", sizeBuckets),
		idempotencyRequests: counter(MetricIdempotencyRequests,
			"Write requests carrying an Idempotency-Key by outcome", []string{"outcome"}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts a limiter check. keyType is "user" or "ip".
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked counts a 429.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

func (m *Metrics) IncRateLimitRedisErrors() {
	if m == nil {
		return
	}
	m.rateLimitRedisErrors.Inc()
}

// IncIdempotency counts one keyed write by outcome.
func (m *Metrics) IncIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyRequests.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one finished request. path must already be
// normalized to a route template.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": status}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
		m.idempotencyRequests,
	}
}
