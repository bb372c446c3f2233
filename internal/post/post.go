// Package post implements the feed: posts with an optional image, likes that
// toggle per user, comments, and the home feed built from the viewer and
// everyone the viewer follows.
package post

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/socialgraph/internal/validate"
)

// Content limits, in characters.
const (
	MaxDescriptionLength = 255
	MaxCommentLength     = 255
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

var (
	// ErrUnauthenticated is returned when no caller identity is supplied.
	ErrUnauthenticated = errors.New("caller identity required")
	// ErrPostNotFound is returned when the post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrNotOwner is returned when a caller deletes someone else's post.
	ErrNotOwner = errors.New("post belongs to another user")
	// ErrAuthorNotFound is returned when the caller has no user record.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrEmptyPost is returned for a post with neither text nor image.
	ErrEmptyPost = errors.New("post needs a description or an image")
	// ErrDescriptionTooLong is returned when the description exceeds MaxDescriptionLength.
	ErrDescriptionTooLong = errors.New("description is too long")
	// ErrInvalidImage is returned when the image is not a public http(s) URL.
	ErrInvalidImage = errors.New("invalid image URL")
	// ErrEmptyComment is returned for a blank comment.
	ErrEmptyComment = errors.New("comment is empty")
	// ErrCommentTooLong is returned when a comment exceeds MaxCommentLength.
	ErrCommentTooLong = errors.New("comment is too long")
	// ErrStorage wraps every failure reported by the Store.
	ErrStorage = errors.New("post storage failure")
)

// Post is one entry of a user's feed.
type Post struct {
	ID           string    `json:"id" db:"id"`
	AuthorID     string    `json:"authorId" db:"author_id"`
	Description  string    `json:"description" db:"description"`
	Image        string    `json:"image,omitempty" db:"image"`
	LikeCount    int       `json:"likeCount" db:"like_count"`
	CommentCount int       `json:"commentCount" db:"comment_count"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Comment is a reply to a post.
type Comment struct {
	ID          string    `json:"id" db:"id"`
	PostID      string    `json:"postId" db:"post_id"`
	AuthorID    string    `json:"authorId" db:"author_id"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Draft is the client input for a new post.
type Draft struct {
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Validate trims d and checks it. A draft needs text, an image or both.
func (d Draft) Validate() (Draft, error) {
	desc, err := validate.String(d.Description, validate.StringConstraints{
		MaxLength:  MaxDescriptionLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("%w: maximum is %d characters", ErrDescriptionTooLong, MaxDescriptionLength)
	}

	image := strings.TrimSpace(d.Image)
	if image != "" {
		if image, err = validate.MediaURL(image); err != nil {
			return Draft{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
	}

	if desc == "" && image == "" {
		return Draft{}, ErrEmptyPost
	}
	return Draft{Description: desc, Image: image}, nil
}

// validateComment trims text and checks its length.
func validateComment(text string) (string, error) {
	text, err := validate.String(text, validate.StringConstraints{
		MaxLength: MaxCommentLength,
		TrimSpace: true,
	})
	switch {
	case errors.Is(err, validate.ErrEmpty):
		return "", ErrEmptyComment
	case err != nil:
		return "", fmt.Errorf("%w: maximum is %d characters", ErrCommentTooLong, MaxCommentLength)
	}
	return text, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
