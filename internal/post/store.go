package post

import (
	"context"
)

// Tx performs like writes inside one atomic unit. InsertLike is
// insert-or-ignore and DeleteLike is delete-if-exists; both report whether a
// row changed.
type Tx interface {
	InsertLike(ctx context.Context, postID, userID string) (bool, error)
	DeleteLike(ctx context.Context, postID, userID string) (bool, error)
}

// Store persists posts, likes and comments.
type Store interface {
	// CreatePost inserts p and sets p.CreatedAt. Returns ErrAuthorNotFound
	// when p.AuthorID has no user record.
	CreatePost(ctx context.Context, p *Post) error

	// GetPost returns ErrPostNotFound when no post has id.
	GetPost(ctx context.Context, id string) (*Post, error)

	// DeletePost removes the post only when authorID wrote it, and reports
	// whether a row was removed. Likes and comments go with it.
	DeletePost(ctx context.Context, id, authorID string) (bool, error)

	// Atomically runs fn in a single unit of work serialized against every
	// other unit for the same (postID, userID). Writes commit together when
	// fn returns nil.
	Atomically(ctx context.Context, postID, userID string, fn func(tx Tx) error) error

	// CreateComment inserts c and sets c.CreatedAt. Returns ErrPostNotFound
	// when the post is gone.
	CreateComment(ctx context.Context, c *Comment) error

	// ListComments returns comments on postID, newest first.
	ListComments(ctx context.Context, postID string, limit int) ([]Comment, error)

	// ListByAuthors returns posts written by any of authorIDs, newest first.
	ListByAuthors(ctx context.Context, authorIDs []string, limit int) ([]Post, error)
}

// Followees lists the users a viewer follows.
type Followees interface {
	FolloweeIDs(ctx context.Context, followerID string) ([]string, error)
}
