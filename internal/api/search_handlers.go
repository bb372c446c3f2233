package api

import (
	"context"
	"net/http"

	"github.com/onnwee/socialgraph/internal/user"
)

// UserSearcher runs a ranked user search. Failures surface as an empty list.
type UserSearcher interface {
	Search(ctx context.Context, query string) []user.Summary
}

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	searcher UserSearcher
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(searcher UserSearcher) *SearchHandlers {
	return &SearchHandlers{searcher: searcher}
}

// UserSearchResponse is the body of GET /search/users.
type UserSearchResponse struct {
	Users []user.Summary `json:"users"`
}

// SearchUsers handles GET /search/users?q=. It always answers 200; an empty
// query or a storage failure yields an empty list.
func (h *SearchHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	results := h.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if results == nil {
		results = []user.Summary{}
	}
	writeJSON(w, r, http.StatusOK, UserSearchResponse{Users: results})
}
