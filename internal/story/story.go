// Package story implements short-lived image stories. Each user has at most
// one story; posting another replaces it. Stories expire after Lifetime.
package story

import (
	"context"
	"errors"
	"time"
)

// Lifetime is how long a story stays visible.
const Lifetime = 24 * time.Hour

var (
	// ErrUnauthenticated is returned when no caller identity is supplied.
	ErrUnauthenticated = errors.New("caller identity required")
	// ErrInvalidImage is returned when the image is not a public http(s) URL.
	ErrInvalidImage = errors.New("invalid image URL")
	// ErrAuthorNotFound is returned when the caller has no user record.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrStorage wraps every failure reported by the Store.
	ErrStorage = errors.New("story storage failure")
)

// Story is a user's current story.
type Story struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Image     string    `json:"image" db:"image"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Active reports whether s is still visible at now.
func (s Story) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Store persists stories.
type Store interface {
	// Put replaces the story of s.UserID with s in one unit. Returns
	// ErrAuthorNotFound when the user has no record.
	Put(ctx context.Context, s *Story) error

	// ListActive returns stories of userIDs that expire after now, newest
	// first.
	ListActive(ctx context.Context, userIDs []string, now time.Time) ([]Story, error)

	// DeleteExpired removes stories that expired at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Followees lists the users a viewer follows.
type Followees interface {
	FolloweeIDs(ctx context.Context, followerID string) ([]string, error)
}
