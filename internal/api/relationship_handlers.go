package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/relationship"
)

// RelationshipGraph is the subset of relationship.Graph the handlers use.
type RelationshipGraph interface {
	ToggleFollow(ctx context.Context, callerID, targetID string) (relationship.State, error)
	AcceptRequest(ctx context.Context, receiverID, senderID string) (bool, error)
	DeclineRequest(ctx context.Context, receiverID, senderID string) (bool, error)
	ToggleBlock(ctx context.Context, callerID, targetID string) (bool, error)
	Status(ctx context.Context, callerID, targetID string) (*relationship.Status, error)
	IncomingRequests(ctx context.Context, receiverID string, limit int) ([]relationship.FollowRequest, error)
	Followers(ctx context.Context, userID string, limit int) ([]relationship.FollowEdge, error)
	Following(ctx context.Context, userID string, limit int) ([]relationship.FollowEdge, error)
}

// RelationshipHandlers serves follow, request and block transitions. The
// caller is always the authenticated user from the request context.
type RelationshipHandlers struct {
	graph RelationshipGraph
}

// NewRelationshipHandlers creates a new RelationshipHandlers instance.
func NewRelationshipHandlers(graph RelationshipGraph) *RelationshipHandlers {
	return &RelationshipHandlers{graph: graph}
}

// FollowResponse is the body of POST /relationships/{id}/follow.
type FollowResponse struct {
	State relationship.State `json:"state"`
}

// BlockResponse is the body of POST /relationships/{id}/block.
type BlockResponse struct {
	Blocked bool `json:"blocked"`
}

// RequestDecisionResponse is the body of the accept and decline endpoints.
type RequestDecisionResponse struct {
	Changed bool `json:"changed"`
}

// FollowRequestsResponse is the body of GET /follow-requests.
type FollowRequestsResponse struct {
	Requests []relationship.FollowRequest `json:"requests"`
}

// FollowEdgesResponse is the body of the followers and following endpoints.
type FollowEdgesResponse struct {
	Edges []relationship.FollowEdge `json:"edges"`
}

// ToggleFollow handles POST /relationships/{id}/follow.
func (h *RelationshipHandlers) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	state, err := h.graph.ToggleFollow(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "toggle_follow", err)
		return
	}
	writeJSON(w, r, http.StatusOK, FollowResponse{State: state})
}

// ToggleBlock handles POST /relationships/{id}/block.
func (h *RelationshipHandlers) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.graph.ToggleBlock(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "toggle_block", err)
		return
	}
	writeJSON(w, r, http.StatusOK, BlockResponse{Blocked: blocked})
}

// Status handles GET /relationships/{id}.
func (h *RelationshipHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.graph.Status(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "status", err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// AcceptRequest handles POST /follow-requests/{id}/accept where id is the sender.
func (h *RelationshipHandlers) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	changed, err := h.graph.AcceptRequest(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "accept_request", err)
		return
	}
	writeJSON(w, r, http.StatusOK, RequestDecisionResponse{Changed: changed})
}

// DeclineRequest handles POST /follow-requests/{id}/decline where id is the sender.
func (h *RelationshipHandlers) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	changed, err := h.graph.DeclineRequest(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "decline_request", err)
		return
	}
	writeJSON(w, r, http.StatusOK, RequestDecisionResponse{Changed: changed})
}

// IncomingRequests handles GET /follow-requests.
func (h *RelationshipHandlers) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reqs, err := h.graph.IncomingRequests(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, "incoming_requests", err)
		return
	}
	if reqs == nil {
		reqs = []relationship.FollowRequest{}
	}
	writeJSON(w, r, http.StatusOK, FollowRequestsResponse{Requests: reqs})
}

// Followers handles GET /users/{id}/followers.
func (h *RelationshipHandlers) Followers(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, "followers", h.graph.Followers)
}

// Following handles GET /users/{id}/following.
func (h *RelationshipHandlers) Following(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, "following", h.graph.Following)
}

func (h *RelationshipHandlers) listEdges(w http.ResponseWriter, r *http.Request, op string,
	list func(context.Context, string, int) ([]relationship.FollowEdge, error)) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	edges, err := list(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	if edges == nil {
		edges = []relationship.FollowEdge{}
	}
	writeJSON(w, r, http.StatusOK, FollowEdgesResponse{Edges: edges})
}

// parseLimit reads the optional ?limit= parameter. Zero means the graph
// default; values above the maximum are clamped by the graph.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		WriteValidationError(w, r.Context(), "Invalid query parameters", map[string]string{
			"limit": "must be a positive integer",
		})
		return 0, false
	}
	return limit, true
}
