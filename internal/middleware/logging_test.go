package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testLogEntry represents a parsed JSON log entry for testing.
type testLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/search/users?q=ann", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseEntry(t, buf)
	if entry.Method != "GET" || entry.Path != "/search/users" {
		t.Errorf("unexpected method/path %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("expected default status 200, got %d", entry.Status)
	}
	if entry.Size != 5 {
		t.Errorf("expected size 5, got %d", entry.Size)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
}

func TestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}
	for _, tt := range tests {
		buf := &bytes.Buffer{}
		handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if entry := parseEntry(t, buf); entry.Level != tt.wantLevel {
			t.Errorf("status %d: level = %s, want %s", tt.status, entry.Level, tt.wantLevel)
		}
	}
}

func TestLogging_InnerContextFieldsReachLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	// Inner handlers derive new contexts; the outer logger still sees them.
	handler := RequestID(Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetUserID(r.Context(), "user_42")
		ctx = SetErrorCode(ctx, "forbidden")
		_ = ctx
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/relationships/u1/block", nil)
	req.Header.Set(RequestIDHeader, "req-id-789")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseEntry(t, buf)
	if entry.RequestID != "req-id-789" {
		t.Errorf("expected request_id req-id-789, got %s", entry.RequestID)
	}
	if entry.UserID != "user_42" {
		t.Errorf("expected user_id user_42, got %s", entry.UserID)
	}
	if entry.ErrorCode != "forbidden" {
		t.Errorf("expected error_code forbidden, got %s", entry.ErrorCode)
	}
	if entry.Size != 21 {
		t.Errorf("expected size 21, got %d", entry.Size)
	}
}

func TestLogging_UpdateResponseContext(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(context.Background(), errorCodeKey{}, "validation_error")
		UpdateResponseContext(w, ctx)
		w.WriteHeader(http.StatusBadRequest)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/users/me", nil))

	if entry := parseEntry(t, buf); entry.ErrorCode != "validation_error" {
		t.Errorf("expected error_code validation_error, got %q", entry.ErrorCode)
	}
}

func TestLogging_NoErrorCodeFor2xx(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "some_code")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	if strings.Contains(buf.String(), "error_code") {
		t.Error("error_code should not be logged for 2xx responses")
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		if NewLogger(env) == nil {
			t.Errorf("NewLogger(%q) returned nil", env)
		}
	}
}

func TestSetUserID_GetUserID(t *testing.T) {
	ctx := context.Background()
	if id := GetUserID(ctx); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
	ctx = SetUserID(ctx, "user_1")
	if id := GetUserID(ctx); id != "user_1" {
		t.Errorf("expected user_1, got %q", id)
	}
}

func TestSetErrorCode_GetErrorCode(t *testing.T) {
	ctx := context.Background()
	if code := GetErrorCode(ctx); code != "" {
		t.Errorf("expected empty error code, got %q", code)
	}
	ctx = SetErrorCode(ctx, "not_found")
	if code := GetErrorCode(ctx); code != "not_found" {
		t.Errorf("expected not_found, got %q", code)
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("expected 201 to stick, got rw=%d underlying=%d", rw.statusCode, w.Code)
	}
}
