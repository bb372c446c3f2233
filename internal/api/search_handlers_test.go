package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/socialgraph/internal/user"
)

func TestSearchUsers_Ranked(t *testing.T) {
	s := newTestServer(t)
	s.seed(
		&user.User{ID: "u2", Username: "joseph", Name: "Joseph"},
		&user.User{ID: "u1", Username: "jo", Name: "Jo"},
		&user.User{ID: "u3", Username: "zed", Name: "Zed"},
	)

	w := s.do(http.MethodGet, "/search/users?q=jo", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[UserSearchResponse](t, w)
	if len(got.Users) != 2 {
		t.Fatalf("users = %+v", got.Users)
	}
	if got.Users[0].ID != "u1" {
		t.Errorf("exact username should rank first, got %s", got.Users[0].ID)
	}
}

func TestSearchUsers_EmptyQuery(t *testing.T) {
	s := newTestServer(t)
	s.seed(&user.User{ID: "u1", Username: "jo"})

	for _, path := range []string{"/search/users", "/search/users?q=", "/search/users?q=%20%20"} {
		w := s.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Body.String() != "{\"users\":[]}\n" {
			t.Errorf("%s: body = %q", path, w.Body.String())
		}
	}
}

type nilSearcher struct{ query string }

func (n *nilSearcher) Search(_ context.Context, q string) []user.Summary {
	n.query = q
	return nil
}

func TestSearchUsers_NilResultsEncodeAsArray(t *testing.T) {
	searcher := &nilSearcher{}
	h := NewSearchHandlers(searcher)

	req := httptest.NewRequest(http.MethodGet, "/search/users?q=John+Smith", nil)
	w := httptest.NewRecorder()
	h.SearchUsers(w, req)

	if searcher.query != "John Smith" {
		t.Errorf("searcher got %q", searcher.query)
	}
	if w.Body.String() != "{\"users\":[]}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}
