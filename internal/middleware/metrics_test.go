package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if len(m.Collectors()) != 8 {
		t.Errorf("expected 8 collectors, got %d", len(m.Collectors()))
	}

	m.IncRateLimitRequests("/search/users", "user")
	m.IncRateLimitRequests("/search/users", "user")
	m.IncRateLimitRequests("/users/{id}", "ip")
	m.IncRateLimitBlocked("/search/users", "ip")

	requests := gatherFamily(t, reg, MetricRateLimitRequests)
	if requests == nil || len(requests.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets on %s", MetricRateLimitRequests)
	}
	if gatherFamily(t, reg, MetricRateLimitBlocked) == nil {
		t.Errorf("metric %s not found", MetricRateLimitBlocked)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncRateLimitRequests("/", "ip")
	m.IncRateLimitBlocked("/", "ip")
	m.IncRateLimitRedisErrors()
	m.IncIdempotency(IdempotencyStored)
	m.ObserveHTTPRequest("GET", "/", "200", 0.1, 0, 0)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/search/users", "/search/users"},
		{"/health", "/health"},
		{"/users/me", "/users/me"},
		{"/users/sync", "/users/sync"},
		{"/users/abc123", "/users/{id}"},
		{"/users/abc123/followers", "/users/{id}/followers"},
		{"/users/abc123/following", "/users/{id}/following"},
		{"/relationships/u1", "/relationships/{id}"},
		{"/relationships/u1/follow", "/relationships/{id}/follow"},
		{"/relationships/u1/block", "/relationships/{id}/block"},
		{"/follow-requests", "/follow-requests"},
		{"/follow-requests/u9/accept", "/follow-requests/{id}/accept"},
		{"/follow-requests/u9/decline", "/follow-requests/{id}/decline"},
		{"/relationships//follow", "other"},
		{"/users/u1/posts", "other"},
		{"/wp-admin/install.php", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHTTPMetrics(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"users":[]}`))
	}))

	for _, p := range []string{"/users/a", "/users/b", "/users/missing", "/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	total := gatherFamily(t, reg, MetricHTTPRequestsTotal)
	if total == nil {
		t.Fatal("http_requests_total not found")
	}

	counts := map[string]float64{}
	for _, metric := range total.GetMetric() {
		if path := labelValue(metric, "path"); path == "/health" || path == "/ready" {
			t.Errorf("health endpoint %s must not be recorded", path)
		}
		counts[labelValue(metric, "status")] += metric.GetCounter().GetValue()
		if got := labelValue(metric, "path"); got != "/users/{id}" {
			t.Errorf("path label = %q, want /users/{id}", got)
		}
	}
	if counts["200"] != 2 || counts["404"] != 1 {
		t.Errorf("status counts = %v, want 200:2 404:1", counts)
	}

	sizes := gatherFamily(t, reg, MetricHTTPResponseSizeBytes)
	if sizes == nil {
		t.Fatal("http_response_size_bytes not found")
	}
	for _, metric := range sizes.GetMetric() {
		if labelValue(metric, "status") == "200" && metric.GetHistogram().GetSampleSum() != 2*12 {
			t.Errorf("response size sum = %v, want 24", metric.GetHistogram().GetSampleSum())
		}
	}
}
