package relationship

import (
	"context"
	"time"
)

// EventType names a committed graph transition.
type EventType string

const (
	EventFollowRequested       EventType = "follow.requested"
	EventFollowRequestCanceled EventType = "follow.request_canceled"
	EventFollowAccepted        EventType = "follow.accepted"
	EventFollowDeclined        EventType = "follow.declined"
	EventUnfollowed            EventType = "follow.removed"
	EventBlocked               EventType = "block.created"
	EventUnblocked             EventType = "block.removed"
)

// Event describes a committed transition. ActorID is the caller, TargetID
// the other party.
type Event struct {
	Type       EventType `json:"type"`
	ActorID    string    `json:"actorId"`
	TargetID   string    `json:"targetId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher receives events after their transition has committed.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
