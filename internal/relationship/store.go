package relationship

import (
	"context"
)

// Tx performs conditional writes inside one atomic unit. Insert methods are
// insert-or-ignore and delete methods are delete-if-exists; each reports
// whether a row changed.
type Tx interface {
	InsertFollow(ctx context.Context, followerID, followingID string) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error)
	InsertRequest(ctx context.Context, senderID, receiverID string) (bool, error)
	DeleteRequest(ctx context.Context, senderID, receiverID string) (bool, error)
	InsertBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// Store persists the relationship graph.
type Store interface {
	// Atomically runs fn in a single unit of work that is serialized against
	// every other unit touching the same unordered pair {a, b}. All writes
	// commit together when fn returns nil and none persist otherwise.
	Atomically(ctx context.Context, a, b string, fn func(tx Tx) error) error

	// Lookup reports which rows exist between a and b.
	Lookup(ctx context.Context, a, b string) (Snapshot, error)

	// ListFollowers returns edges pointing at userID, newest first.
	ListFollowers(ctx context.Context, userID string, limit int) ([]FollowEdge, error)

	// ListFollowing returns edges leaving userID, newest first.
	ListFollowing(ctx context.Context, userID string, limit int) ([]FollowEdge, error)

	// ListIncomingRequests returns pending requests sent to receiverID, newest first.
	ListIncomingRequests(ctx context.Context, receiverID string, limit int) ([]FollowRequest, error)

	// FolloweeIDs returns every user followerID follows, sorted by id.
	FolloweeIDs(ctx context.Context, followerID string) ([]string, error)
}
