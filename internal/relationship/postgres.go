package relationship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// foreignKeyViolation is the Postgres SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// PostgresStore implements Store on Postgres. Each unit of work runs in a
// READ COMMITTED transaction holding a transaction-scoped advisory lock on
// the unordered user pair.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed relationship store.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Atomically runs fn inside a transaction serialized on the pair {a, b}.
func (s *PostgresStore) Atomically(ctx context.Context, a, b string, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
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

	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, lo, hi); err != nil {
		return fmt.Errorf("failed to acquire pair lock: %w", err)
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

// Lookup reports which rows exist between a and b in one round-trip.
func (s *PostgresStore) Lookup(ctx context.Context, a, b string) (snap Snapshot, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2),
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $2 AND following_id = $1),
			EXISTS(SELECT 1 FROM follow_requests WHERE sender_id = $1 AND receiver_id = $2),
			EXISTS(SELECT 1 FROM follow_requests WHERE sender_id = $2 AND receiver_id = $1),
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2),
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $2 AND blocked_id = $1)`

	err = s.db.QueryRowContext(ctx, query, a, b).Scan(
		&snap.Following, &snap.FollowedBy,
		&snap.Requested, &snap.RequestedBy,
		&snap.Blocking, &snap.BlockedBy,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to look up relationship: %w", err)
	}
	return snap, nil
}

// ListFollowers returns edges pointing at userID, newest first.
func (s *PostgresStore) ListFollowers(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	return s.listFollows(ctx, `
		SELECT follower_id, following_id, created_at FROM follows
		WHERE following_id = $1
		ORDER BY created_at DESC, follower_id
		LIMIT $2`, userID, limit)
}

// ListFollowing returns edges leaving userID, newest first.
func (s *PostgresStore) ListFollowing(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	return s.listFollows(ctx, `
		SELECT follower_id, following_id, created_at FROM follows
		WHERE follower_id = $1
		ORDER BY created_at DESC, following_id
		LIMIT $2`, userID, limit)
}

func (s *PostgresStore) listFollows(ctx context.Context, query, userID string, limit int) (out []FollowEdge, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer rows.Close()

	out = []FollowEdge{}
	for rows.Next() {
		var e FollowEdge
		if err := rows.Scan(&e.FollowerID, &e.FollowingID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follows: %w", err)
	}
	return out, nil
}

// ListIncomingRequests returns pending requests sent to receiverID, newest first.
func (s *PostgresStore) ListIncomingRequests(ctx context.Context, receiverID string, limit int) (out []FollowRequest, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follow_requests", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, receiver_id, created_at FROM follow_requests
		WHERE receiver_id = $1
		ORDER BY created_at DESC, sender_id
		LIMIT $2`, receiverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow requests: %w", err)
	}
	defer rows.Close()

	out = []FollowRequest{}
	for rows.Next() {
		var r FollowRequest
		if err := rows.Scan(&r.SenderID, &r.ReceiverID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follow requests: %w", err)
	}
	return out, nil
}

// FolloweeIDs returns every user followerID follows, sorted by id.
func (s *PostgresStore) FolloweeIDs(ctx context.Context, followerID string) (out []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT following_id FROM follows WHERE follower_id = $1 ORDER BY following_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followees: %w", err)
	}
	defer rows.Close()

	out = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan followee: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate followees: %w", err)
	}
	return out, nil
}

// pgTx implements Tx with insert-or-ignore and delete-if-exists statements.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) exec(ctx context.Context, table string, op tracing.DBOperation, query, from, to string) (changed bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, op)
	defer func() { endSpan(err) }()

	res, err := t.tx.ExecContext(ctx, query, from, to)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return false, ErrTargetNotFound
		}
		return false, fmt.Errorf("failed to %s %s: %w", op, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (t *pgTx) InsertFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return t.exec(ctx, "follows", tracing.DBOperationInsert, `
		INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING`, followerID, followingID)
}

func (t *pgTx) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return t.exec(ctx, "follows", tracing.DBOperationDelete,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
}

func (t *pgTx) InsertRequest(ctx context.Context, senderID, receiverID string) (bool, error) {
	return t.exec(ctx, "follow_requests", tracing.DBOperationInsert, `
		INSERT INTO follow_requests (sender_id, receiver_id) VALUES ($1, $2)
		ON CONFLICT (sender_id, receiver_id) DO NOTHING`, senderID, receiverID)
}

func (t *pgTx) DeleteRequest(ctx context.Context, senderID, receiverID string) (bool, error) {
	return t.exec(ctx, "follow_requests", tracing.DBOperationDelete,
		`DELETE FROM follow_requests WHERE sender_id = $1 AND receiver_id = $2`, senderID, receiverID)
}

func (t *pgTx) InsertBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return t.exec(ctx, "blocks", tracing.DBOperationInsert, `
		INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING`, blockerID, blockedID)
}

func (t *pgTx) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return t.exec(ctx, "blocks", tracing.DBOperationDelete,
		`DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
}
