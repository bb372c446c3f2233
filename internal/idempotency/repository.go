package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
	timeNow func() time.Time
}

// NewInMemoryRepository creates a new in-memory idempotency repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]Record),
		timeNow: time.Now,
	}
}

// Get retrieves a record by key.
func (r *InMemoryRepository) Get(ctx context.Context, key string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &rec, nil
}

// Reserve stores rec as processing unless the key is taken.
func (r *InMemoryRepository) Reserve(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.Key]; exists {
		return ErrKeyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.timeNow()
	}
	rec.Status = StatusProcessing
	r.records[rec.Key] = *rec
	return nil
}

// Complete stores the final response for rec.Key.
func (r *InMemoryRepository) Complete(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[rec.Key]
	if !ok {
		return ErrKeyNotFound
	}
	stored := *rec
	stored.Status = StatusCompleted
	stored.CreatedAt = existing.CreatedAt
	r.records[rec.Key] = stored
	return nil
}

// Release deletes key.
func (r *InMemoryRepository) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

// DeleteOlderThan removes records created before now minus age.
func (r *InMemoryRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.timeNow().Add(-age)
	var deleted int64
	for key, rec := range r.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}
