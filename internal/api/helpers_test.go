package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/socialgraph/internal/auth"
	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/post"
	"github.com/onnwee/socialgraph/internal/relationship"
	"github.com/onnwee/socialgraph/internal/search"
	"github.com/onnwee/socialgraph/internal/story"
	"github.com/onnwee/socialgraph/internal/user"
)

const testSecret = "api-test-secret-0123456789abcdef"

// testServer wires the router over in-memory stores.
type testServer struct {
	t       *testing.T
	handler http.Handler
	dir     *user.InMemoryDirectory
	store   *relationship.InMemoryStore
	posts   *post.InMemoryStore
	stories *story.InMemoryStore
	jwt     *auth.JWTService
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()

	dir := user.NewInMemoryDirectory()
	store := relationship.NewInMemoryStore()
	graph := relationship.NewGraph(store, relationship.WithPolicy(relationship.Policy{
		RejectSelf:         true,
		BlockSeversFollows: true,
	}))
	jwtSvc := auth.NewJWTService(auth.Config{Secret: testSecret})
	postStore := post.NewInMemoryStore()
	storyStore := story.NewInMemoryStore()

	cfg := RouterConfig{
		Search:        NewSearchHandlers(search.NewRanker(dir)),
		Relationships: NewRelationshipHandlers(graph),
		Users:         NewUserHandlers(dir, user.NewSyncer(dir, nil)),
		Posts:         NewPostHandlers(post.NewService(postStore, store)),
		Stories:       NewStoryHandlers(story.NewService(storyStore, store, nil)),
		Uploads:       NewUploadHandlers(nil),
		Health:        NewHealthHandlers(HealthHandlersConfig{}),
		Auth:          jwtSvc,
		SearchLimit:   middleware.RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute},
		WriteLimit:    middleware.RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{
		t:       t,
		handler: NewRouter(cfg),
		dir:     dir,
		store:   store,
		posts:   postStore,
		stories: storyStore,
		jwt:     jwtSvc,
	}
}

func (s *testServer) seed(users ...*user.User) {
	s.t.Helper()
	for _, u := range users {
		if err := s.dir.Create(s.t.Context(), u); err != nil {
			s.t.Fatalf("seed %s: %v", u.ID, err)
		}
	}
}

// do sends a request as userID; an empty userID sends no token.
func (s *testServer) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := s.jwt.GenerateAccessToken(userID)
		if err != nil {
			s.t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response: %v, body: %s", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Error.Code != code {
		t.Errorf("expected error code %s, got %s", code, resp.Error.Code)
	}
	return resp
}
