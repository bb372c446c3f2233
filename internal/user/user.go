// Package user provides the user directory: profile records, the
// case-insensitive candidate lookup used by search, first sign-in sync and
// profile updates.
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors for user operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmptyID       = errors.New("user id cannot be empty")
)

// Default media paths assigned to users who have not uploaded their own.
const (
	DefaultAvatar = "/noAvatar.png"
	DefaultCover  = "/noCover.png"
)

// User is a full profile record. ID is issued by the identity provider and
// never changes.
type User struct {
	ID          string    `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Name        string    `json:"name,omitempty" db:"name"`
	Surname     string    `json:"surname,omitempty" db:"surname"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	Cover       string    `json:"cover,omitempty" db:"cover"`
	Description string    `json:"description,omitempty" db:"description"`
	City        string    `json:"city,omitempty" db:"city"`
	School      string    `json:"school,omitempty" db:"school"`
	Work        string    `json:"work,omitempty" db:"work"`
	Website     string    `json:"website,omitempty" db:"website"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Summary is the projection returned by search.
type Summary struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Name     string `json:"name,omitempty" db:"name"`
	Surname  string `json:"surname,omitempty" db:"surname"`
	Avatar   string `json:"avatar,omitempty" db:"avatar"`
}

// Summary returns the search projection of u.
func (u *User) Summary() Summary {
	return Summary{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Surname:  u.Surname,
		Avatar:   u.Avatar,
	}
}

// Field names a searchable user column.
type Field string

const (
	FieldUsername Field = "username"
	FieldName     Field = "name"
	FieldSurname  Field = "surname"
)

// MatchKind selects how a term is compared against a field.
type MatchKind string

const (
	MatchContains   MatchKind = "contains"
	MatchStartsWith MatchKind = "starts_with"
)

// Condition is a single case-insensitive comparison.
type Condition struct {
	Field Field
	Match MatchKind
	Term  string
}

// Clause is a conjunction of conditions.
type Clause []Condition

// Filter is a disjunction of clauses. An empty filter matches nothing.
type Filter []Clause

// Matches reports whether s satisfies the condition. Term is expected to be
// lowercase already.
func (c Condition) Matches(s Summary) bool {
	var value string
	switch c.Field {
	case FieldUsername:
		value = s.Username
	case FieldName:
		value = s.Name
	case FieldSurname:
		value = s.Surname
	default:
		return false
	}
	value = strings.ToLower(value)
	term := strings.ToLower(c.Term)

	switch c.Match {
	case MatchStartsWith:
		return strings.HasPrefix(value, term)
	case MatchContains:
		return strings.Contains(value, term)
	}
	return false
}

// Matches reports whether every condition of the clause holds for s.
func (cl Clause) Matches(s Summary) bool {
	if len(cl) == 0 {
		return false
	}
	for _, c := range cl {
		if !c.Matches(s) {
			return false
		}
	}
	return true
}

// Matches reports whether any clause of the filter holds for s.
func (f Filter) Matches(s Summary) bool {
	for _, cl := range f {
		if cl.Matches(s) {
			return true
		}
	}
	return false
}

// Directory is the storage contract for user records.
type Directory interface {
	// GetByID returns ErrUserNotFound when no record exists.
	GetByID(ctx context.Context, id string) (*User, error)

	// Search returns at most limit summaries matching filter, ordered by
	// username then id.
	Search(ctx context.Context, filter Filter, limit int) ([]Summary, error)

	// Create inserts a new record. Returns ErrUserExists for a duplicate id
	// and ErrUsernameTaken for a duplicate username.
	Create(ctx context.Context, u *User) error

	// UpdateProfile applies a validated update and returns the new record.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)
}
