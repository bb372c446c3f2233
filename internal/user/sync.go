package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/socialgraph/internal/validate"
)

// SyncRequest carries the identity-provider fields used to create a user on
// first sign-in.
type SyncRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// Syncer creates directory records for newly signed-in identities.
type Syncer struct {
	dir    Directory
	logger *slog.Logger
}

// NewSyncer creates a Syncer backed by dir.
func NewSyncer(dir Directory, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{dir: dir, logger: logger}
}

// EnsureExists returns the user with the given id, creating it when absent.
// The bool result is true when a record was created by this call.
func (s *Syncer) EnsureExists(ctx context.Context, id string, req SyncRequest) (*User, bool, error) {
	if id == "" {
		return nil, false, ErrEmptyID
	}

	existing, err := s.dir.GetByID(ctx, id)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	avatar, err := validate.MediaURL(req.ImageURL)
	if err != nil {
		avatar = DefaultAvatar
	}
	u := &User{
		ID:       id,
		Username: FallbackUsername(id, req.Username, req.Email),
		Avatar:   avatar,
		Cover:    DefaultCover,
	}

	if err := s.dir.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			// Lost a race with a concurrent sync for the same identity.
			return s.readAfterRace(ctx, id)
		}
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "user synced",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username))
	return u, true, nil
}

func (s *Syncer) readAfterRace(ctx context.Context, id string) (*User, bool, error) {
	u, err := s.dir.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read user after concurrent create: %w", err)
	}
	return u, false, nil
}

// FallbackUsername picks the requested username, else the local part of a
// well-formed e-mail address,
// else "user_" followed by the last 8 characters of id. Candidates that are
// not valid handles are skipped.
func FallbackUsername(id, username, email string) string {
	if u, err := validate.Username(username); err == nil {
		return u
	}
	if addr, err := validate.Email(email); err == nil {
		local, _, _ := strings.Cut(addr, "@")
		if u, err := validate.Username(local); err == nil {
			return u
		}
	}
	suffix := []rune(id)
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return "user_" + string(suffix)
}
