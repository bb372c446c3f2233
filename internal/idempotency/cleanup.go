package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// CleanupOldKeys removes records older than expiry and returns how many were
// deleted.
func CleanupOldKeys(ctx context.Context, repo Repository, expiry time.Duration, logger *slog.Logger) (int64, error) {
	deleted, err := repo.DeleteOlderThan(ctx, expiry)
	if err != nil {
		logger.ErrorContext(ctx, "failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		logger.InfoContext(ctx, "cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}

	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys immediately and then every interval
// until ctx is done. It blocks; run it in a goroutine.
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = CleanupOldKeys(ctx, repo, expiry, logger)

	for {
		select {
		case <-ticker.C:
			_, _ = CleanupOldKeys(ctx, repo, expiry, logger)
		case <-ctx.Done():
			logger.Info("stopping idempotency cleanup")
			return
		}
	}
}
