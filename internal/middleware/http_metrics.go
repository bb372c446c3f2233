package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// routePatterns lists every route with a path parameter. Segments written
// as {name} match any single non-empty segment.
var routePatterns = [][]string{
	{"relationships", "{id}"},
	{"relationships", "{id}", "follow"},
	{"relationships", "{id}", "block"},
	{"follow-requests", "{id}", "accept"},
	{"follow-requests", "{id}", "decline"},
	{"users", "{id}"},
	{"users", "{id}", "followers"},
	{"users", "{id}", "following"},
}

// staticRoutes are reported verbatim.
var staticRoutes = map[string]bool{
	"/":                true,
	"/search/users":    true,
	"/follow-requests": true,
	"/users/sync":      true,
	"/users/me":        true,
	"/uploads/sign":    true,
	"/health":          true,
	"/ready":           true,
	"/metrics":         true,
}

// normalizePath maps a request path to its route pattern so metric labels
// stay bounded, e.g. /users/abc/followers becomes /users/{id}/followers.
// Unknown paths are collapsed to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, pattern := range routePatterns {
		if matchRoute(pattern, parts) {
			return "/" + strings.Join(pattern, "/")
		}
	}
	return "other"
}

func matchRoute(pattern, parts []string) bool {
	if len(pattern) != len(parts) {
		return false
	}
	for i, seg := range pattern {
		if parts[i] == "" {
			return false
		}
		if strings.HasPrefix(seg, "{") {
			continue
		}
		if seg != parts[i] {
			return false
		}
	}
	return true
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics records request duration, size and count per route.
// Health endpoints are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			var requestSize int64
			if r.ContentLength > 0 {
				requestSize = r.ContentLength
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
