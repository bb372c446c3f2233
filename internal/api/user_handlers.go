package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/user"
)

// maxUserBodyBytes caps profile and sync request bodies.
const maxUserBodyBytes = 16 << 10

// UserStore is the subset of user.Directory the handlers use.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	UpdateProfile(ctx context.Context, id string, update user.ProfileUpdate) (*user.User, error)
}

// UserSyncer creates the directory record for a signed-in identity.
type UserSyncer interface {
	EnsureExists(ctx context.Context, id string, req user.SyncRequest) (*user.User, bool, error)
}

// UserHandlers serves profile reads, first sign-in sync and profile edits.
type UserHandlers struct {
	users  UserStore
	syncer UserSyncer
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(users UserStore, syncer UserSyncer) *UserHandlers {
	return &UserHandlers{users: users, syncer: syncer}
}

// GetUser handles GET /users/{id}.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get_user", err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// SyncUser handles POST /users/sync. It answers 201 when the caller's record
// was created by this request and 200 when it already existed.
func (h *UserHandlers) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req user.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, created, err := h.syncer.EnsureExists(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, "sync_user", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, u)
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var update user.ProfileUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	update, err := update.Validate()
	if err != nil {
		writeServiceError(w, r, "update_profile", err)
		return
	}
	if update.IsEmpty() {
		writeBadRequest(w, r, "No profile fields to update")
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), update)
	if err != nil {
		writeServiceError(w, r, "update_profile", err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// decodeBody decodes a JSON body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUserBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return false
	}
	return true
}
