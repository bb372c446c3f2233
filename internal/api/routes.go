package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/socialgraph/internal/idempotency"
	"github.com/onnwee/socialgraph/internal/middleware"
)

// RouterConfig carries the handlers and per-route middleware dependencies.
type RouterConfig struct {
	Search        *SearchHandlers
	Relationships *RelationshipHandlers
	Users         *UserHandlers
	Posts         *PostHandlers
	Stories       *StoryHandlers
	Uploads       *UploadHandlers
	Health        *HealthHandlers

	// Auth validates bearer tokens on every route that acts for a caller.
	Auth middleware.TokenValidator

	// RateLimitStore enables the search and write limiters when set.
	RateLimitStore middleware.RateLimitStore
	SearchLimit    middleware.RateLimitConfig
	WriteLimit     middleware.RateLimitConfig
	Metrics        *middleware.Metrics

	// Idempotency enables Idempotency-Key replay on write routes when set.
	Idempotency idempotency.Repository
	Logger      *slog.Logger

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter registers every API route on a new ServeMux. Global middleware
// (request id, logging, CORS, global rate limit) is applied by the caller.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(cfg.Auth)
	searchLimit := limiter(cfg, "search", cfg.SearchLimit, middleware.IPKeyFunc())
	writeLimit := limiter(cfg, "write", cfg.WriteLimit, middleware.UserKeyFunc())

	replay := func(next http.Handler) http.Handler { return next }
	if cfg.Idempotency != nil {
		replay = middleware.Idempotency(cfg.Idempotency, cfg.Metrics, cfg.Logger)
	}

	read := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
	write := func(h http.HandlerFunc) http.Handler { return requireAuth(writeLimit(replay(h))) }

	mux.Handle("GET /search/users", searchLimit(http.HandlerFunc(cfg.Search.SearchUsers)))

	rel := cfg.Relationships
	mux.Handle("GET /relationships/{id}", read(rel.Status))
	mux.Handle("POST /relationships/{id}/follow", write(rel.ToggleFollow))
	mux.Handle("POST /relationships/{id}/block", write(rel.ToggleBlock))
	mux.Handle("GET /follow-requests", read(rel.IncomingRequests))
	mux.Handle("POST /follow-requests/{id}/accept", write(rel.AcceptRequest))
	mux.Handle("POST /follow-requests/{id}/decline", write(rel.DeclineRequest))
	mux.HandleFunc("GET /users/{id}/followers", rel.Followers)
	mux.HandleFunc("GET /users/{id}/following", rel.Following)

	mux.HandleFunc("GET /users/{id}", cfg.Users.GetUser)
	mux.Handle("POST /users/sync", write(cfg.Users.SyncUser))
	mux.Handle("PATCH /users/me", write(cfg.Users.UpdateMe))

	posts := cfg.Posts
	mux.Handle("GET /feed", read(posts.Feed))
	mux.Handle("POST /posts", write(posts.CreatePost))
	mux.HandleFunc("GET /posts/{id}", posts.GetPost)
	mux.Handle("DELETE /posts/{id}", write(posts.DeletePost))
	mux.Handle("POST /posts/{id}/like", write(posts.ToggleLike))
	mux.HandleFunc("GET /posts/{id}/comments", posts.Comments)
	mux.Handle("POST /posts/{id}/comments", write(posts.AddComment))
	mux.HandleFunc("GET /users/{id}/posts", posts.UserPosts)

	mux.Handle("GET /stories", read(cfg.Stories.ActiveStories))
	mux.Handle("POST /stories", write(cfg.Stories.PostStory))

	mux.Handle("POST /uploads/sign", write(cfg.Uploads.SignUpload))

	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})

	return mux
}

// limiter returns a scoped rate limiter, or a pass-through when no store is
// configured.
func limiter(cfg RouterConfig, scope string, limit middleware.RateLimitConfig, kf middleware.KeyFunc) func(http.Handler) http.Handler {
	if cfg.RateLimitStore == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimiter(cfg.RateLimitStore, limit, middleware.ScopedKeyFunc(scope, kf), cfg.Metrics)
}
