package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryDirectory is an in-memory implementation of Directory.
// Thread-safe via RWMutex.
type InMemoryDirectory struct {
	mu        sync.RWMutex
	users     map[string]*User  // id -> user
	usernames map[string]string // lowercase username -> id
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
	}
}

// GetByID retrieves a user by id.
func (d *InMemoryDirectory) GetByID(ctx context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// Search evaluates filter against every stored user.
func (d *InMemoryDirectory) Search(ctx context.Context, filter Filter, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Summary
	for _, u := range d.users {
		s := u.Summary()
		if filter.Matches(s) {
			matches = append(matches, s)
		}
	}

	// Same order as the Postgres query: case-folded username, then byte
	// order of username and id.
	sort.Slice(matches, func(i, j int) bool {
		li, lj := strings.ToLower(matches[i].Username), strings.ToLower(matches[j].Username)
		if li != lj {
			return li < lj
		}
		if matches[i].Username != matches[j].Username {
			return matches[i].Username < matches[j].Username
		}
		return matches[i].ID < matches[j].ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Create inserts a new user.
func (d *InMemoryDirectory) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		return ErrEmptyID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[u.ID]; exists {
		return ErrUserExists
	}
	key := strings.ToLower(u.Username)
	if _, taken := d.usernames[key]; taken {
		return ErrUsernameTaken
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	userCopy := *u
	d.users[u.ID] = &userCopy
	d.usernames[key] = u.ID
	return nil
}

// UpdateProfile applies the non-empty fields of update.
func (d *InMemoryDirectory) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	update.apply(u)
	u.UpdatedAt = time.Now()

	userCopy := *u
	return &userCopy, nil
}

// Count returns the number of stored users.
func (d *InMemoryDirectory) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users), nil
}
