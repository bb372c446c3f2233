package post

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

type likeKey struct {
	postID, userID string
}

type postRow struct {
	post Post
	seq  uint64
}

type commentRow struct {
	comment Comment
	seq     uint64
}

// InMemoryStore is an in-memory implementation of Store.
// A single mutex serializes every unit of work.
type InMemoryStore struct {
	mu       sync.Mutex
	posts    map[string]postRow
	likes    map[likeKey]struct{}
	comments map[string][]commentRow
	seq      uint64
	timeNow  func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		posts:    make(map[string]postRow),
		likes:    make(map[likeKey]struct{}),
		comments: make(map[string][]commentRow),
		timeNow:  time.Now,
	}
}

// CreatePost inserts p.
func (s *InMemoryStore) CreatePost(ctx context.Context, p *Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.timeNow().UTC()
	}
	stored := *p
	stored.LikeCount, stored.CommentCount = 0, 0
	s.seq++
	s.posts[p.ID] = postRow{post: stored, seq: s.seq}
	return nil
}

// GetPost returns a copy of the post with current counts.
func (s *InMemoryStore) GetPost(ctx context.Context, id string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p := s.withCounts(row.post)
	return &p, nil
}

// DeletePost removes the post and its likes and comments when authorID wrote it.
func (s *InMemoryStore) DeletePost(ctx context.Context, id, authorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[id]
	if !ok || row.post.AuthorID != authorID {
		return false, nil
	}
	delete(s.posts, id)
	delete(s.comments, id)
	for k := range s.likes {
		if k.postID == id {
			delete(s.likes, k)
		}
	}
	return true, nil
}

// Atomically runs fn under the store mutex and undoes its writes when fn
// returns an error.
func (s *InMemoryStore) Atomically(ctx context.Context, postID, userID string, fn func(tx Tx) error) error {
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

// CreateComment appends c to its post.
func (s *InMemoryStore) CreateComment(ctx context.Context, c *Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[c.PostID]; !ok {
		return ErrPostNotFound
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.timeNow().UTC()
	}
	s.seq++
	s.comments[c.PostID] = append(s.comments[c.PostID], commentRow{comment: *c, seq: s.seq})
	return nil
}

// ListComments returns comments on postID, newest first.
func (s *InMemoryStore) ListComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.comments[postID]
	out := make([]Comment, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i].comment)
	}
	return out, nil
}

// ListByAuthors returns posts written by any of authorIDs, newest first.
func (s *InMemoryStore) ListByAuthors(ctx context.Context, authorIDs []string, limit int) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []postRow
	for _, row := range s.posts {
		if slices.Contains(authorIDs, row.post.AuthorID) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]Post, len(rows))
	for i, row := range rows {
		out[i] = s.withCounts(row.post)
	}
	return out, nil
}

// withCounts fills the derived counters. Callers must hold s.mu.
func (s *InMemoryStore) withCounts(p Post) Post {
	p.LikeCount = 0
	for k := range s.likes {
		if k.postID == p.ID {
			p.LikeCount++
		}
	}
	p.CommentCount = len(s.comments[p.ID])
	return p
}

// memTx applies like writes directly and journals their inverses.
type memTx struct {
	store *InMemoryStore
	undo  []func()
}

func (tx *memTx) InsertLike(ctx context.Context, postID, userID string) (bool, error) {
	if _, ok := tx.store.posts[postID]; !ok {
		return false, ErrPostNotFound
	}
	k := likeKey{postID, userID}
	if _, exists := tx.store.likes[k]; exists {
		return false, nil
	}
	tx.store.likes[k] = struct{}{}
	tx.undo = append(tx.undo, func() { delete(tx.store.likes, k) })
	return true, nil
}

func (tx *memTx) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	k := likeKey{postID, userID}
	if _, exists := tx.store.likes[k]; !exists {
		return false, nil
	}
	delete(tx.store.likes, k)
	tx.undo = append(tx.undo, func() { tx.store.likes[k] = struct{}{} })
	return true, nil
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}
