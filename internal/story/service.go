package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/socialgraph/internal/tracing"
	"github.com/onnwee/socialgraph/internal/validate"
)

// Service posts and lists stories.
type Service struct {
	store     Store
	followees Followees
	logger    *slog.Logger
	timeNow   func() time.Time
	newID     func() string
}

// NewService creates a Service over store. followees supplies whose stories
// a viewer sees besides their own.
func NewService(store Store, followees Followees, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		followees: followees,
		logger:    logger,
		timeNow:   time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Post replaces the caller's story with image.
func (s *Service) Post(ctx context.Context, userID, image string) (st *Story, err error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	image, err = validate.MediaURL(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	ctx, endSpan := tracing.StartSpan(ctx, "story.post")
	defer func() { endSpan(err) }()

	now := s.timeNow().UTC()
	st = &Story{
		ID:        s.newID(),
		UserID:    userID,
		Image:     image,
		CreatedAt: now,
		ExpiresAt: now.Add(Lifetime),
	}
	if err := s.store.Put(ctx, st); err != nil {
		return nil, s.storageError(ctx, "post", err)
	}
	return st, nil
}

// Active lists unexpired stories of viewerID and everyone viewerID follows.
func (s *Service) Active(ctx context.Context, viewerID string) (out []Story, err error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	ctx, endSpan := tracing.StartSpan(ctx, "story.active")
	defer func() { endSpan(err) }()

	users, err := s.followees.FolloweeIDs(ctx, viewerID)
	if err != nil {
		return nil, s.storageError(ctx, "active", err)
	}
	users = append(users, viewerID)

	out, err = s.store.ListActive(ctx, users, s.timeNow())
	if err != nil {
		return nil, s.storageError(ctx, "active", err)
	}
	return out, nil
}

// DeleteExpired removes expired stories and returns how many were deleted.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpired(ctx, s.timeNow())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete expired stories", "error", err)
		return 0, err
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "deleted expired stories", "deleted", deleted)
	}
	return deleted, nil
}

// RunPeriodicCleanup runs DeleteExpired immediately and then every interval
// until ctx is done. It blocks; run it in a goroutine.
func (s *Service) RunPeriodicCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = s.DeleteExpired(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = s.DeleteExpired(ctx)
		case <-ctx.Done():
			s.logger.Info("stopping story cleanup")
			return
		}
	}
}

func (s *Service) storageError(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrAuthorNotFound) {
		return err
	}
	s.logger.ErrorContext(ctx, "story operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
