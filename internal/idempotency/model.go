// Package idempotency stores the outcome of write requests sent with an
// Idempotency-Key header so that a retried toggle replays the first answer
// instead of flipping the relationship back.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Record states. A record is Processing from the moment a request reserves
// its key until the handler's response is stored.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when reserving a key that is already held.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty or has characters
	// outside [A-Za-z0-9_-].
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// DefaultExpiry is how long a completed response is replayed.
const DefaultExpiry = 24 * time.Hour

// Record is a reserved or completed idempotency key. Key is already scoped
// to the caller, see ScopedKey.
type Record struct {
	Key          string    `json:"key"`
	Method       string    `json:"method"`
	Route        string    `json:"route"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code,omitempty"`
	Body         string    `json:"body,omitempty"`
	ResponseHash string    `json:"response_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether the record was created for the same method and route.
func (r *Record) Matches(method, route string) bool {
	return r.Method == method && r.Route == route
}

// ValidateKey checks the client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return ErrInvalidKey
		}
	}
	return nil
}

// ScopedKey namespaces a client key by user so two users cannot collide.
func ScopedKey(userID, key string) string {
	return userID + ":" + key
}

// ComputeResponseHash computes a SHA256 hash of the response body.
func ComputeResponseHash(body string) string {
	hash := sha256.Sum256([]byte(body))
	return hex.EncodeToString(hash[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns ErrKeyNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (*Record, error)

	// Reserve stores rec in StatusProcessing. Returns ErrKeyExists when the
	// key is already reserved or completed.
	Reserve(ctx context.Context, rec *Record) error

	// Complete overwrites the reservation with the final response.
	Complete(ctx context.Context, rec *Record) error

	// Release drops a reservation so the client may retry with the same key.
	Release(ctx context.Context, key string) error

	// DeleteOlderThan removes records created more than age ago and returns
	// how many were removed.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
