package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/socialgraph/internal/idempotency"
)

// IdempotencyKeyHeader is the request header carrying the client's key.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayedHeader is set to "true" on replayed responses.
const IdempotentReplayedHeader = "Idempotent-Replayed"

// idempotencyResponseWriter captures the response while passing it through.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// that a retried toggle does not flip state twice. Requests without the
// header pass through. Keys are scoped to the authenticated user, so this
// must run after RequireAuth. Only 2xx responses are stored; any other
// outcome, a handler panic or a failed store releases the key for a retry.
// metrics may be nil.
func Idempotency(repo idempotency.Repository, metrics *Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(IdempotencyKeyHeader)
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(clientKey); err != nil {
				writeIdempotencyError(w, r, http.StatusBadRequest, "validation_error", err.Error())
				return
			}

			ctx := r.Context()
			rec := &idempotency.Record{
				Key:    idempotency.ScopedKey(GetUserID(ctx), clientKey),
				Method: r.Method,
				Route:  r.URL.Path,
			}

			err := repo.Reserve(ctx, rec)
			switch {
			case errors.Is(err, idempotency.ErrKeyExists):
				metrics.IncIdempotency(replay(ctx, w, r, repo, rec, logger))
				return
			case err != nil:
				logger.ErrorContext(ctx, "failed to reserve idempotency key", "key", rec.Key, "error", err)
				metrics.IncIdempotency(IdempotencyBypassed)
				next.ServeHTTP(w, r)
				return
			}

			// The response is already on the wire once next returns; store
			// with a context that survives client disconnects.
			storeCtx := context.WithoutCancel(ctx)
			release := func(outcome string) {
				if err := repo.Release(storeCtx, rec.Key); err != nil {
					logger.ErrorContext(ctx, "failed to release idempotency key", "key", rec.Key, "error", err)
				}
				metrics.IncIdempotency(outcome)
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			func() {
				defer func() {
					if p := recover(); p != nil {
						release(IdempotencyReleased)
						panic(p)
					}
				}()
				next.ServeHTTP(capture, r)
			}()

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				release(IdempotencyReleased)
				return
			}

			rec.StatusCode = capture.statusCode
			rec.Body = capture.body.String()
			rec.ResponseHash = idempotency.ComputeResponseHash(rec.Body)
			if err := repo.Complete(storeCtx, rec); err != nil {
				// A reservation left in processing would answer every retry
				// with 409 until it expires.
				logger.ErrorContext(ctx, "failed to store idempotency key", "key", rec.Key, "error", err)
				release(IdempotencyUnstored)
				return
			}
			metrics.IncIdempotency(IdempotencyStored)
		})
	}
}

// replay answers a request whose key is already held and returns the outcome.
func replay(ctx context.Context, w http.ResponseWriter, r *http.Request, repo idempotency.Repository, rec *idempotency.Record, logger *slog.Logger) string {
	existing, err := repo.Get(ctx, rec.Key)
	if err != nil {
		// Released or expired between Reserve and Get.
		logger.WarnContext(ctx, "idempotency key vanished during lookup", "key", rec.Key, "error", err)
		writeIdempotencyError(w, r, http.StatusConflict, "conflict", "Request with this Idempotency-Key is being retried, try again")
		return IdempotencyConflict
	}

	if !existing.Matches(rec.Method, rec.Route) {
		writeIdempotencyError(w, r, http.StatusConflict, "conflict", "Idempotency-Key was already used for a different request")
		return IdempotencyConflict
	}
	if existing.Status != idempotency.StatusCompleted {
		writeIdempotencyError(w, r, http.StatusConflict, "conflict", "A request with this Idempotency-Key is still in progress")
		return IdempotencyConflict
	}

	logger.DebugContext(ctx, "replaying idempotent response", "key", rec.Key, "status", existing.StatusCode)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(existing.StatusCode)
	_, _ = w.Write([]byte(existing.Body))
	return IdempotencyReplayed
}

func writeIdempotencyError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := SetErrorCode(r.Context(), code)
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
