package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores records as JSON strings. Expiry is delegated to
// Redis key TTLs.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisRepository creates a repository whose records expire after ttl.
// A non-positive ttl falls back to DefaultExpiry.
func NewRedisRepository(client redis.UniversalClient, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &RedisRepository{client: client, prefix: "idempotency:", ttl: ttl}
}

// Get retrieves a record by key.
func (r *RedisRepository) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Reserve stores rec with SETNX.
func (r *RedisRepository) Reserve(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Status = StatusProcessing
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.prefix+rec.Key, raw, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

// Complete overwrites the reservation and keeps its TTL.
func (r *RedisRepository) Complete(ctx context.Context, rec *Record) error {
	stored := *rec
	stored.Status = StatusCompleted
	raw, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	err = r.client.SetArgs(ctx, r.prefix+rec.Key, raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes key.
func (r *RedisRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan is a no-op; Redis expires records on its own.
func (r *RedisRepository) DeleteOlderThan(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
