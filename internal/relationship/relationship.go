// Package relationship implements the follow / follow-request / block graph
// between users. Every transition runs as one atomic unit against the Store
// and is idempotent by state.
package relationship

import (
	"errors"
	"time"
)

// Common errors for relationship operations.
var (
	// ErrUnauthenticated is returned when no caller identity is supplied.
	ErrUnauthenticated = errors.New("caller identity required")
	// ErrInvalidTarget is returned when the target identity is empty.
	ErrInvalidTarget = errors.New("target identity required")
	// ErrSelfRelation is returned for self-follow or self-block when the
	// policy rejects them.
	ErrSelfRelation = errors.New("cannot target own identity")
	// ErrTargetNotFound is returned when the store rejects an edge to an
	// unknown user.
	ErrTargetNotFound = errors.New("target user not found")
	// ErrStorage wraps every failure reported by the Store.
	ErrStorage = errors.New("relationship storage failure")
)

// State is the follow state of an ordered pair (caller, target).
type State string

const (
	StateNone      State = "none"
	StateRequested State = "requested"
	StateFollowing State = "following"
)

// FollowEdge is a confirmed follow from FollowerID to FollowingID.
type FollowEdge struct {
	FollowerID  string    `json:"followerId"`
	FollowingID string    `json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FollowRequest is a pending ask from SenderID to follow ReceiverID.
type FollowRequest struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BlockEdge is a block placed by BlockerID on BlockedID.
type BlockEdge struct {
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot lists which rows exist between two users a and b.
type Snapshot struct {
	Following   bool // FollowEdge(a, b)
	FollowedBy  bool // FollowEdge(b, a)
	Requested   bool // FollowRequest(a, b)
	RequestedBy bool // FollowRequest(b, a)
	Blocking    bool // BlockEdge(a, b)
	BlockedBy   bool // BlockEdge(b, a)
}

// Status describes the relationship between a caller and a target as seen
// by the caller.
type Status struct {
	Outgoing  State `json:"outgoing"`
	Incoming  State `json:"incoming"`
	Blocking  bool  `json:"blocking"`
	BlockedBy bool  `json:"blockedBy"`
}

// StatusFromSnapshot derives the caller-facing status.
func StatusFromSnapshot(s Snapshot) Status {
	st := Status{
		Outgoing:  StateNone,
		Incoming:  StateNone,
		Blocking:  s.Blocking,
		BlockedBy: s.BlockedBy,
	}
	switch {
	case s.Following:
		st.Outgoing = StateFollowing
	case s.Requested:
		st.Outgoing = StateRequested
	}
	switch {
	case s.FollowedBy:
		st.Incoming = StateFollowing
	case s.RequestedBy:
		st.Incoming = StateRequested
	}
	return st
}

// Policy holds the behaviors left open by the graph model. The zero value
// allows self-relations and keeps blocks independent of follow state.
type Policy struct {
	// RejectSelf makes self-follow and self-block fail with ErrSelfRelation.
	RejectSelf bool
	// BlockSeversFollows removes FollowEdges and FollowRequests in both
	// directions when a block is created.
	BlockSeversFollows bool
}
