package api

import (
	"context"
	"net/http"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/post"
)

// PostService is the subset of post.Service the handlers use.
type PostService interface {
	Create(ctx context.Context, authorID string, d post.Draft) (*post.Post, error)
	Get(ctx context.Context, id string) (*post.Post, error)
	Delete(ctx context.Context, callerID, id string) error
	ToggleLike(ctx context.Context, callerID, id string) (bool, error)
	AddComment(ctx context.Context, callerID, id, text string) (*post.Comment, error)
	Comments(ctx context.Context, id string, limit int) ([]post.Comment, error)
	Feed(ctx context.Context, viewerID string, limit int) ([]post.Post, error)
	ByAuthor(ctx context.Context, authorID string, limit int) ([]post.Post, error)
}

// PostHandlers serves posts, likes, comments and the home feed.
type PostHandlers struct {
	posts PostService
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(posts PostService) *PostHandlers {
	return &PostHandlers{posts: posts}
}

// LikeResponse is the body of POST /posts/{id}/like.
type LikeResponse struct {
	Liked bool `json:"liked"`
}

// PostsResponse is the body of the feed endpoints.
type PostsResponse struct {
	Posts []post.Post `json:"posts"`
}

// CommentsResponse is the body of GET /posts/{id}/comments.
type CommentsResponse struct {
	Comments []post.Comment `json:"comments"`
}

// CommentRequest is the body of POST /posts/{id}/comments.
type CommentRequest struct {
	Description string `json:"description"`
}

// CreatePost handles POST /posts.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var d post.Draft
	if !decodeBody(w, r, &d) {
		return
	}
	p, err := h.posts.Create(r.Context(), middleware.GetUserID(r.Context()), d)
	if err != nil {
		writeServiceError(w, r, "create_post", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

// GetPost handles GET /posts/{id}.
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get_post", err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// DeletePost handles DELETE /posts/{id}. Only the author may delete.
func (h *PostHandlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete_post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike handles POST /posts/{id}/like.
func (h *PostHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := h.posts.ToggleLike(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "toggle_like", err)
		return
	}
	writeJSON(w, r, http.StatusOK, LikeResponse{Liked: liked})
}

// AddComment handles POST /posts/{id}/comments.
func (h *PostHandlers) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.posts.AddComment(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), req.Description)
	if err != nil {
		writeServiceError(w, r, "add_comment", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// Comments handles GET /posts/{id}/comments.
func (h *PostHandlers) Comments(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	comments, err := h.posts.Comments(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, r, "comments", err)
		return
	}
	writeJSON(w, r, http.StatusOK, CommentsResponse{Comments: comments})
}

// Feed handles GET /feed: the caller's posts and those of everyone they follow.
func (h *PostHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	posts, err := h.posts.Feed(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, "feed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, PostsResponse{Posts: posts})
}

// UserPosts handles GET /users/{id}/posts.
func (h *PostHandlers) UserPosts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	posts, err := h.posts.ByAuthor(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, r, "user_posts", err)
		return
	}
	writeJSON(w, r, http.StatusOK, PostsResponse{Posts: posts})
}
