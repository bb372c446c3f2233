package api

import (
	"context"
	"net/http"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/story"
)

// StoryService is the subset of story.Service the handlers use.
type StoryService interface {
	Post(ctx context.Context, userID, image string) (*story.Story, error)
	Active(ctx context.Context, viewerID string) ([]story.Story, error)
}

// StoryHandlers serves the caller's story and the stories they can see.
type StoryHandlers struct {
	stories StoryService
}

// NewStoryHandlers creates a new StoryHandlers instance.
func NewStoryHandlers(stories StoryService) *StoryHandlers {
	return &StoryHandlers{stories: stories}
}

// StoryRequest is the body of POST /stories.
type StoryRequest struct {
	Image string `json:"image"`
}

// StoriesResponse is the body of GET /stories.
type StoriesResponse struct {
	Stories []story.Story `json:"stories"`
}

// PostStory handles POST /stories. It replaces any story the caller has.
func (h *StoryHandlers) PostStory(w http.ResponseWriter, r *http.Request) {
	var req StoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.stories.Post(r.Context(), middleware.GetUserID(r.Context()), req.Image)
	if err != nil {
		writeServiceError(w, r, "post_story", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, st)
}

// ActiveStories handles GET /stories.
func (h *StoryHandlers) ActiveStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.Active(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "active_stories", err)
		return
	}
	writeJSON(w, r, http.StatusOK, StoriesResponse{Stories: stories})
}
