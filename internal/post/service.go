package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// Service applies post, like and comment operations for an authenticated
// caller.
type Service struct {
	store     Store
	followees Followees
	logger    *slog.Logger
	timeNow   func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service over store. followees supplies the authors
// of the home feed.
func NewService(store Store, followees Followees, opts ...Option) *Service {
	s := &Service{
		store:     store,
		followees: followees,
		logger:    slog.Default(),
		timeNow:   time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create publishes a post for authorID.
func (s *Service) Create(ctx context.Context, authorID string, d Draft) (p *Post, err error) {
	if authorID == "" {
		return nil, ErrUnauthenticated
	}
	d, err = d.Validate()
	if err != nil {
		return nil, err
	}

	ctx, endSpan := s.startSpan(ctx, "create", authorID)
	defer func() { endSpan(err) }()

	p = &Post{
		ID:          s.newID(),
		AuthorID:    authorID,
		Description: d.Description,
		Image:       d.Image,
		CreatedAt:   s.timeNow().UTC(),
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, s.storageError(ctx, "create", err)
	}
	return p, nil
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, id string) (*Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, s.storageError(ctx, "get", err)
	}
	return p, nil
}

// Delete removes a post written by callerID. Returns ErrNotOwner when the
// post belongs to someone else.
func (s *Service) Delete(ctx context.Context, callerID, id string) (err error) {
	if callerID == "" {
		return ErrUnauthenticated
	}

	ctx, endSpan := s.startSpan(ctx, "delete", callerID)
	defer func() { endSpan(err) }()

	removed, err := s.store.DeletePost(ctx, id, callerID)
	if err != nil {
		return s.storageError(ctx, "delete", err)
	}
	if removed {
		return nil
	}
	if _, err := s.store.GetPost(ctx, id); err != nil {
		return s.storageError(ctx, "delete", err)
	}
	return ErrNotOwner
}

// ToggleLike removes the caller's like on id if present and adds it
// otherwise. Returns whether the caller likes the post afterwards.
func (s *Service) ToggleLike(ctx context.Context, callerID, id string) (liked bool, err error) {
	if callerID == "" {
		return false, ErrUnauthenticated
	}

	ctx, endSpan := s.startSpan(ctx, "toggle_like", callerID)
	defer func() { endSpan(err) }()

	err = s.store.Atomically(ctx, id, callerID, func(tx Tx) error {
		removed, err := tx.DeleteLike(ctx, id, callerID)
		if err != nil {
			return err
		}
		if removed {
			liked = false
			return nil
		}
		if _, err := tx.InsertLike(ctx, id, callerID); err != nil {
			return err
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, s.storageError(ctx, "toggle_like", err)
	}
	return liked, nil
}

// AddComment attaches text to post id.
func (s *Service) AddComment(ctx context.Context, callerID, id, text string) (c *Comment, err error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	text, err = validateComment(text)
	if err != nil {
		return nil, err
	}

	ctx, endSpan := s.startSpan(ctx, "add_comment", callerID)
	defer func() { endSpan(err) }()

	c = &Comment{
		ID:          s.newID(),
		PostID:      id,
		AuthorID:    callerID,
		Description: text,
		CreatedAt:   s.timeNow().UTC(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, s.storageError(ctx, "add_comment", err)
	}
	return c, nil
}

// Comments lists comments on post id, newest first.
func (s *Service) Comments(ctx context.Context, id string, limit int) ([]Comment, error) {
	out, err := s.store.ListComments(ctx, id, clampLimit(limit))
	if err != nil {
		return nil, s.storageError(ctx, "comments", err)
	}
	return out, nil
}

// Feed lists posts by viewerID and everyone viewerID follows, newest first.
func (s *Service) Feed(ctx context.Context, viewerID string, limit int) (out []Post, err error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	ctx, endSpan := s.startSpan(ctx, "feed", viewerID)
	defer func() { endSpan(err) }()

	authors, err := s.followees.FolloweeIDs(ctx, viewerID)
	if err != nil {
		return nil, s.storageError(ctx, "feed", err)
	}
	authors = append(authors, viewerID)

	out, err = s.store.ListByAuthors(ctx, authors, clampLimit(limit))
	if err != nil {
		return nil, s.storageError(ctx, "feed", err)
	}
	return out, nil
}

// ByAuthor lists posts written by authorID, newest first.
func (s *Service) ByAuthor(ctx context.Context, authorID string, limit int) ([]Post, error) {
	out, err := s.store.ListByAuthors(ctx, []string{authorID}, clampLimit(limit))
	if err != nil {
		return nil, s.storageError(ctx, "by_author", err)
	}
	return out, nil
}

func (s *Service) startSpan(ctx context.Context, op, callerID string) (context.Context, func(error)) {
	ctx, endSpan := tracing.StartSpan(ctx, "post."+op)
	tracing.SetAttributes(ctx, attribute.String("post.caller_id", callerID))
	return ctx, endSpan
}

// storageError logs and classifies a store failure. Lookup misses pass
// through unwrapped.
func (s *Service) storageError(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrAuthorNotFound) {
		return err
	}
	s.logger.ErrorContext(ctx, "post operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
