package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// foreignKeyViolation is the Postgres SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

const storyColumns = `id, user_id, image, created_at, expires_at`

// PostgresStore implements Store on Postgres via sqlx. stories.user_id is
// unique, so Put is a single upsert.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed story store.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Put replaces the user's story.
func (s *PostgresStore) Put(ctx context.Context, st *Story) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "stories", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO stories (`+storyColumns+`)
		VALUES (:id, :user_id, :image, :created_at, :expires_at)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			image = EXCLUDED.image,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`, st)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return ErrAuthorNotFound
		}
		return fmt.Errorf("failed to put story: %w", err)
	}
	s.logger.DebugContext(ctx, "story replaced", slog.String("user_id", st.UserID))
	return nil
}

// ListActive returns stories of userIDs that expire after now, newest first.
func (s *PostgresStore) ListActive(ctx context.Context, userIDs []string, now time.Time) (out []Story, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "stories", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	out = []Story{}
	err = s.db.SelectContext(ctx, &out, `
		SELECT `+storyColumns+` FROM stories
		WHERE user_id = ANY($1) AND expires_at > $2
		ORDER BY created_at DESC, id`, pq.Array(userIDs), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return out, nil
}

// DeleteExpired removes stories that expired at or before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (n int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "stories", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}
	return res.RowsAffected()
}
