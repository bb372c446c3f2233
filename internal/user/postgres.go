package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// usersPrimaryKey is the constraint name of users.id.
const usersPrimaryKey = "users_pkey"

const userColumns = `id, username, name, surname, avatar, cover, description,
	city, school, work, website, created_at, updated_at`

// PostgresDirectory implements Directory on Postgres via sqlx.
type PostgresDirectory struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresDirectory creates a Postgres-backed directory.
func NewPostgresDirectory(db *sqlx.DB, logger *slog.Logger) *PostgresDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDirectory{db: db, logger: logger}
}

// GetByID retrieves a user by id.
func (d *PostgresDirectory) GetByID(ctx context.Context, id string) (u *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var out User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := d.db.GetContext(ctx, &out, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &out, nil
}

// Search renders filter as a parameterized WHERE clause using ILIKE.
func (d *PostgresDirectory) Search(ctx context.Context, filter Filter, limit int) (out []Summary, err error) {
	where, args := buildWhere(filter)
	if where == "" {
		return []Summary{}, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT id, username, name, surname, avatar
		FROM users
		WHERE %s
		ORDER BY lower(username) COLLATE "C", username COLLATE "C", id COLLATE "C"
		LIMIT $%d`, where, len(args))

	rows, err := d.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	out = make([]Summary, 0, limit)
	for rows.Next() {
		var s Summary
		if err := rows.StructScan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// Create inserts a new user row.
func (d *PostgresDirectory) Create(ctx context.Context, u *User) (err error) {
	if u.ID == "" {
		return ErrEmptyID
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO users (id, username, name, surname, avatar, cover, description,
			city, school, work, website, created_at, updated_at)
		VALUES (:id, :username, :name, :surname, :avatar, :cover, :description,
			:city, :school, :work, :website, NOW(), NOW())
		RETURNING created_at, updated_at`

	rows, err := d.db.NamedQueryContext(ctx, query, u)
	if err != nil {
		return mapUniqueViolation(err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
			return fmt.Errorf("failed to read created user: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return mapUniqueViolation(err)
	}

	d.logger.DebugContext(ctx, "user created",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username))
	return nil
}

// UpdateProfile writes the non-empty fields of update in one statement.
func (d *PostgresDirectory) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (u *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := "UPDATE users SET updated_at = NOW()"
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(", %s = $%d", column, len(args))
	}
	add("name", update.Name)
	add("surname", update.Surname)
	add("description", update.Description)
	add("city", update.City)
	add("school", update.School)
	add("work", update.Work)
	add("website", update.Website)
	add("cover", update.Cover)

	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d RETURNING %s", len(args), userColumns)

	var out User
	if err := d.db.GetContext(ctx, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &out, nil
}

// Count returns the number of stored users.
func (d *PostgresDirectory) Count(ctx context.Context) (n int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if err := d.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// buildWhere renders filter into SQL with positional arguments.
// Returns an empty string for a filter that matches nothing.
func buildWhere(filter Filter) (string, []interface{}) {
	var (
		args    []interface{}
		clauses []string
	)
	for _, clause := range filter {
		var conds []string
		for _, c := range clause {
			column, ok := columnFor(c.Field)
			if !ok {
				continue
			}
			pattern := escapeLike(strings.ToLower(c.Term))
			switch c.Match {
			case MatchStartsWith:
				pattern += "%"
			case MatchContains:
				pattern = "%" + pattern + "%"
			default:
				continue
			}
			args = append(args, pattern)
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
		}
		if len(conds) == 0 {
			continue
		}
		clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
	}
	return strings.Join(clauses, " OR "), args
}

func columnFor(f Field) (string, bool) {
	switch f {
	case FieldUsername:
		return "username", true
	case FieldName:
		return "name", true
	case FieldSurname:
		return "surname", true
	}
	return "", false
}

// escapeLike escapes LIKE metacharacters so terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		if pqErr.Constraint == usersPrimaryKey {
			return ErrUserExists
		}
		return ErrUsernameTaken
	}
	return fmt.Errorf("failed to create user: %w", err)
}
