package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// foreignKeyViolation is the Postgres SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// Foreign keys that point at posts(id); every other violation is a missing user.
var postForeignKeys = map[string]bool{
	"post_likes_post_id_fkey": true,
	"comments_post_id_fkey":   true,
}

const postColumns = `p.id, p.author_id, p.description, p.image, p.created_at,
	(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count`

// PostgresStore implements Store on Postgres via sqlx. Like toggles run in a
// READ COMMITTED transaction holding an advisory lock on (post, user).
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed post store.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// CreatePost inserts p and reads back its creation time.
func (s *PostgresStore) CreatePost(ctx context.Context, p *Post) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO posts (id, author_id, description, image)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, p.ID, p.AuthorID, p.Description, p.Image).Scan(&p.CreatedAt)
	if err != nil {
		return mapForeignKey(err, "failed to create post")
	}
	return nil
}

// GetPost retrieves a post with its counters.
func (s *PostgresStore) GetPost(ctx context.Context, id string) (p *Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var out Post
	if err := s.db.GetContext(ctx, &out, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &out, nil
}

// DeletePost removes the post when authorID wrote it. Likes and comments
// cascade.
func (s *PostgresStore) DeletePost(ctx context.Context, id, authorID string) (removed bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Atomically runs fn inside a transaction serialized on (postID, userID).
func (s *PostgresStore) Atomically(ctx context.Context, postID, userID string, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		s.logger.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction",
				slog.String("error", err.Error()))
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, postID, userID); err != nil {
		return fmt.Errorf("failed to acquire like lock: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CreateComment inserts c and reads back its creation time.
func (s *PostgresStore) CreateComment(ctx context.Context, c *Comment) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, c.ID, c.PostID, c.AuthorID, c.Description).Scan(&c.CreatedAt)
	if err != nil {
		return mapForeignKey(err, "failed to create comment")
	}
	return nil
}

// ListComments returns comments on postID, newest first.
func (s *PostgresStore) ListComments(ctx context.Context, postID string, limit int) (out []Comment, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	out = []Comment{}
	err = s.db.SelectContext(ctx, &out, `
		SELECT id, post_id, author_id, description, created_at FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return out, nil
}

// ListByAuthors returns posts written by any of authorIDs, newest first.
func (s *PostgresStore) ListByAuthors(ctx context.Context, authorIDs []string, limit int) (out []Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	out = []Post{}
	err = s.db.SelectContext(ctx, &out, `
		SELECT `+postColumns+` FROM posts p
		WHERE p.author_id = ANY($1)
		ORDER BY p.created_at DESC, p.id
		LIMIT $2`, pq.Array(authorIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return out, nil
}

// pgTx implements Tx with insert-or-ignore and delete-if-exists statements.
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) exec(ctx context.Context, op tracing.DBOperation, query, postID, userID string) (changed bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_likes", op)
	defer func() { endSpan(err) }()

	res, err := t.tx.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return false, mapForeignKey(err, fmt.Sprintf("failed to %s post_likes", op))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (t *pgTx) InsertLike(ctx context.Context, postID, userID string) (bool, error) {
	return t.exec(ctx, tracing.DBOperationInsert, `
		INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING`, postID, userID)
}

func (t *pgTx) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	return t.exec(ctx, tracing.DBOperationDelete,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
}

// mapForeignKey converts a foreign_key_violation into ErrPostNotFound or
// ErrAuthorNotFound and wraps anything else with msg.
func mapForeignKey(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
		if postForeignKeys[pqErr.Constraint] {
			return ErrPostNotFound
		}
		return ErrAuthorNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
