package story

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store keyed by user.
type InMemoryStore struct {
	mu      sync.Mutex
	byUser  map[string]Story
	seq     map[string]uint64
	counter uint64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byUser: make(map[string]Story),
		seq:    make(map[string]uint64),
	}
}

// Put replaces the user's story.
func (s *InMemoryStore) Put(ctx context.Context, st *Story) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	s.byUser[st.UserID] = *st
	s.seq[st.UserID] = s.counter
	return nil
}

// ListActive returns stories of userIDs that expire after now, newest first.
func (s *InMemoryStore) ListActive(ctx context.Context, userIDs []string, now time.Time) ([]Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Story{}
	for id, st := range s.byUser {
		if slices.Contains(userIDs, id) && st.Active(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].UserID] > s.seq[out[j].UserID] })
	return out, nil
}

// DeleteExpired removes stories that expired at or before now.
func (s *InMemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, st := range s.byUser {
		if !st.Active(now) {
			delete(s.byUser, id)
			delete(s.seq, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored stories, expired included.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
