package relationship

import (
	"context"
	"sort"
	"sync"
	"time"
)

type edgeKey struct {
	from, to string
}

type edgeRow struct {
	createdAt time.Time
	seq       uint64 // insertion order, breaks CreatedAt ties
}

// InMemoryStore is an in-memory implementation of Store.
// A single mutex serializes every unit of work.
type InMemoryStore struct {
	mu       sync.Mutex
	follows  map[edgeKey]edgeRow
	requests map[edgeKey]edgeRow
	blocks   map[edgeKey]edgeRow
	seq      uint64
	timeNow  func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		follows:  make(map[edgeKey]edgeRow),
		requests: make(map[edgeKey]edgeRow),
		blocks:   make(map[edgeKey]edgeRow),
		timeNow:  time.Now,
	}
}

// Atomically runs fn under the store mutex and undoes its writes when fn
// returns an error.
func (s *InMemoryStore) Atomically(ctx context.Context, a, b string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Lookup reports which rows exist between a and b.
func (s *InMemoryStore) Lookup(ctx context.Context, a, b string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	has := func(m map[edgeKey]edgeRow, from, to string) bool {
		_, ok := m[edgeKey{from, to}]
		return ok
	}
	return Snapshot{
		Following:   has(s.follows, a, b),
		FollowedBy:  has(s.follows, b, a),
		Requested:   has(s.requests, a, b),
		RequestedBy: has(s.requests, b, a),
		Blocking:    has(s.blocks, a, b),
		BlockedBy:   has(s.blocks, b, a),
	}, nil
}

// ListFollowers returns edges pointing at userID, newest first.
func (s *InMemoryStore) ListFollowers(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.collect(s.follows, limit, func(k edgeKey) bool { return k.to == userID })
	out := make([]FollowEdge, len(keys))
	for i, k := range keys {
		out[i] = FollowEdge{FollowerID: k.from, FollowingID: k.to, CreatedAt: s.follows[k].createdAt}
	}
	return out, nil
}

// ListFollowing returns edges leaving userID, newest first.
func (s *InMemoryStore) ListFollowing(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.collect(s.follows, limit, func(k edgeKey) bool { return k.from == userID })
	out := make([]FollowEdge, len(keys))
	for i, k := range keys {
		out[i] = FollowEdge{FollowerID: k.from, FollowingID: k.to, CreatedAt: s.follows[k].createdAt}
	}
	return out, nil
}

// ListIncomingRequests returns pending requests sent to receiverID, newest first.
func (s *InMemoryStore) ListIncomingRequests(ctx context.Context, receiverID string, limit int) ([]FollowRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.collect(s.requests, limit, func(k edgeKey) bool { return k.to == receiverID })
	out := make([]FollowRequest, len(keys))
	for i, k := range keys {
		out[i] = FollowRequest{SenderID: k.from, ReceiverID: k.to, CreatedAt: s.requests[k].createdAt}
	}
	return out, nil
}

// FolloweeIDs returns every user followerID follows, sorted by id.
func (s *InMemoryStore) FolloweeIDs(ctx context.Context, followerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []string{}
	for k := range s.follows {
		if k.from == followerID {
			out = append(out, k.to)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Counts returns the total number of follow, request and block rows.
func (s *InMemoryStore) Counts() (follows, requests, blocks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.follows), len(s.requests), len(s.blocks)
}

// collect returns matching keys newest first. Callers must hold s.mu.
func (s *InMemoryStore) collect(m map[edgeKey]edgeRow, limit int, match func(edgeKey) bool) []edgeKey {
	var keys []edgeKey
	for k := range m {
		if match(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return m[keys[i]].seq > m[keys[j]].seq
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// memTx applies writes directly and journals their inverses.
type memTx struct {
	store *InMemoryStore
	undo  []func()
}

func (tx *memTx) insert(m map[edgeKey]edgeRow, from, to string) bool {
	k := edgeKey{from, to}
	if _, exists := m[k]; exists {
		return false
	}
	tx.store.seq++
	m[k] = edgeRow{createdAt: tx.store.timeNow(), seq: tx.store.seq}
	tx.undo = append(tx.undo, func() { delete(m, k) })
	return true
}

func (tx *memTx) delete(m map[edgeKey]edgeRow, from, to string) bool {
	k := edgeKey{from, to}
	row, exists := m[k]
	if !exists {
		return false
	}
	delete(m, k)
	tx.undo = append(tx.undo, func() { m[k] = row })
	return true
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) InsertFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return tx.insert(tx.store.follows, followerID, followingID), nil
}

func (tx *memTx) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return tx.delete(tx.store.follows, followerID, followingID), nil
}

func (tx *memTx) InsertRequest(ctx context.Context, senderID, receiverID string) (bool, error) {
	return tx.insert(tx.store.requests, senderID, receiverID), nil
}

func (tx *memTx) DeleteRequest(ctx context.Context, senderID, receiverID string) (bool, error) {
	return tx.delete(tx.store.requests, senderID, receiverID), nil
}

func (tx *memTx) InsertBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return tx.insert(tx.store.blocks, blockerID, blockedID), nil
}

func (tx *memTx) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return tx.delete(tx.store.blocks, blockerID, blockedID), nil
}
