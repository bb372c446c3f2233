package relationship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/socialgraph/internal/tracing"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Operation names used in logs and metrics.
const (
	opToggleFollow   = "toggle_follow"
	opAcceptRequest  = "accept_request"
	opDeclineRequest = "decline_request"
	opToggleBlock    = "toggle_block"
)

// Graph applies follow, request and block transitions.
type Graph struct {
	store     Store
	policy    Policy
	publisher EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	timeNow   func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithPolicy sets the self-relation and block-severance policy.
func WithPolicy(p Policy) Option {
	return func(g *Graph) { g.policy = p }
}

// WithPublisher sets the post-commit event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(g *Graph) {
		if p != nil {
			g.publisher = p
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGraph creates a Graph over store.
func NewGraph(store Store, opts ...Option) *Graph {
	g := &Graph{
		store:     store,
		publisher: NopPublisher{},
		logger:    slog.Default(),
		timeNow:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ToggleFollow moves the caller's follow state toward target:
// Following becomes None, a pending request is canceled (None), and
// otherwise a request is created (Requested).
func (g *Graph) ToggleFollow(ctx context.Context, callerID, targetID string) (state State, err error) {
	if err := g.checkPair(callerID, targetID); err != nil {
		return StateNone, err
	}

	ctx, endSpan := g.startSpan(ctx, opToggleFollow, callerID, targetID)
	defer func() { endSpan(err) }()

	var evt EventType
	err = g.store.Atomically(ctx, callerID, targetID, func(tx Tx) error {
		removed, err := tx.DeleteFollow(ctx, callerID, targetID)
		if err != nil {
			return err
		}
		if removed {
			state, evt = StateNone, EventUnfollowed
			return nil
		}

		canceled, err := tx.DeleteRequest(ctx, callerID, targetID)
		if err != nil {
			return err
		}
		if canceled {
			state, evt = StateNone, EventFollowRequestCanceled
			return nil
		}

		created, err := tx.InsertRequest(ctx, callerID, targetID)
		if err != nil {
			return err
		}
		state = StateRequested
		if created {
			evt = EventFollowRequested
		}
		return nil
	})
	if err != nil {
		return StateNone, g.storageError(ctx, opToggleFollow, err)
	}

	g.metrics.incTransition(opToggleFollow, string(state))
	g.publish(ctx, evt, callerID, targetID)
	return state, nil
}

// AcceptRequest consumes FollowRequest(sender, receiver) and creates
// FollowEdge(sender, receiver) in one unit. Returns false when no request
// was pending.
func (g *Graph) AcceptRequest(ctx context.Context, receiverID, senderID string) (changed bool, err error) {
	if err := g.checkPair(receiverID, senderID); err != nil {
		return false, err
	}

	ctx, endSpan := g.startSpan(ctx, opAcceptRequest, receiverID, senderID)
	defer func() { endSpan(err) }()

	err = g.store.Atomically(ctx, senderID, receiverID, func(tx Tx) error {
		consumed, err := tx.DeleteRequest(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if !consumed {
			return nil
		}
		if _, err := tx.InsertFollow(ctx, senderID, receiverID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, g.storageError(ctx, opAcceptRequest, err)
	}

	g.metrics.incTransition(opAcceptRequest, outcome(changed))
	if changed {
		g.publish(ctx, EventFollowAccepted, receiverID, senderID)
	}
	return changed, nil
}

// DeclineRequest deletes FollowRequest(sender, receiver) without creating an
// edge. Returns false when no request was pending.
func (g *Graph) DeclineRequest(ctx context.Context, receiverID, senderID string) (changed bool, err error) {
	if err := g.checkPair(receiverID, senderID); err != nil {
		return false, err
	}

	ctx, endSpan := g.startSpan(ctx, opDeclineRequest, receiverID, senderID)
	defer func() { endSpan(err) }()

	err = g.store.Atomically(ctx, senderID, receiverID, func(tx Tx) error {
		var err error
		changed, err = tx.DeleteRequest(ctx, senderID, receiverID)
		return err
	})
	if err != nil {
		return false, g.storageError(ctx, opDeclineRequest, err)
	}

	g.metrics.incTransition(opDeclineRequest, outcome(changed))
	if changed {
		g.publish(ctx, EventFollowDeclined, receiverID, senderID)
	}
	return changed, nil
}

// ToggleBlock removes BlockEdge(caller, target) if present and creates it
// otherwise. Returns whether the block exists afterwards.
func (g *Graph) ToggleBlock(ctx context.Context, callerID, targetID string) (blocked bool, err error) {
	if err := g.checkPair(callerID, targetID); err != nil {
		return false, err
	}

	ctx, endSpan := g.startSpan(ctx, opToggleBlock, callerID, targetID)
	defer func() { endSpan(err) }()

	err = g.store.Atomically(ctx, callerID, targetID, func(tx Tx) error {
		removed, err := tx.DeleteBlock(ctx, callerID, targetID)
		if err != nil {
			return err
		}
		if removed {
			blocked = false
			return nil
		}
		if _, err := tx.InsertBlock(ctx, callerID, targetID); err != nil {
			return err
		}
		blocked = true

		if g.policy.BlockSeversFollows {
			return severFollows(ctx, tx, callerID, targetID)
		}
		return nil
	})
	if err != nil {
		return false, g.storageError(ctx, opToggleBlock, err)
	}

	evt := EventUnblocked
	if blocked {
		evt = EventBlocked
	}
	g.metrics.incTransition(opToggleBlock, fmt.Sprintf("blocked=%t", blocked))
	g.publish(ctx, evt, callerID, targetID)
	return blocked, nil
}

// severFollows removes every follow edge and request between a and b.
func severFollows(ctx context.Context, tx Tx, a, b string) error {
	for _, p := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.DeleteFollow(ctx, p[0], p[1]); err != nil {
			return err
		}
		if _, err := tx.DeleteRequest(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the relationship between caller and target.
func (g *Graph) Status(ctx context.Context, callerID, targetID string) (*Status, error) {
	if err := g.checkPair(callerID, targetID); err != nil {
		return nil, err
	}

	snap, err := g.store.Lookup(ctx, callerID, targetID)
	if err != nil {
		return nil, g.storageError(ctx, "status", err)
	}
	st := StatusFromSnapshot(snap)
	return &st, nil
}

// IncomingRequests lists requests pending for receiverID.
func (g *Graph) IncomingRequests(ctx context.Context, receiverID string, limit int) ([]FollowRequest, error) {
	if receiverID == "" {
		return nil, ErrUnauthenticated
	}
	out, err := g.store.ListIncomingRequests(ctx, receiverID, clampLimit(limit))
	if err != nil {
		return nil, g.storageError(ctx, "incoming_requests", err)
	}
	return out, nil
}

// Followers lists edges pointing at userID.
func (g *Graph) Followers(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	if userID == "" {
		return nil, ErrInvalidTarget
	}
	out, err := g.store.ListFollowers(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, g.storageError(ctx, "followers", err)
	}
	return out, nil
}

// Following lists edges leaving userID.
func (g *Graph) Following(ctx context.Context, userID string, limit int) ([]FollowEdge, error) {
	if userID == "" {
		return nil, ErrInvalidTarget
	}
	out, err := g.store.ListFollowing(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, g.storageError(ctx, "following", err)
	}
	return out, nil
}

func (g *Graph) checkPair(callerID, targetID string) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	if targetID == "" {
		return ErrInvalidTarget
	}
	if g.policy.RejectSelf && callerID == targetID {
		return ErrSelfRelation
	}
	return nil
}

func (g *Graph) startSpan(ctx context.Context, op, callerID, targetID string) (context.Context, func(error)) {
	ctx, endSpan := tracing.StartSpan(ctx, "relationship."+op)
	tracing.SetAttributes(ctx,
		attribute.String("relationship.caller_id", callerID),
		attribute.String("relationship.target_id", targetID),
	)
	return ctx, endSpan
}

// storageError logs and classifies a store failure.
func (g *Graph) storageError(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrTargetNotFound) {
		return err
	}
	g.metrics.incError(op)
	g.logger.ErrorContext(ctx, "relationship operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func (g *Graph) publish(ctx context.Context, typ EventType, actorID, targetID string) {
	if typ == "" {
		return
	}
	evt := Event{
		Type:       typ,
		ActorID:    actorID,
		TargetID:   targetID,
		OccurredAt: g.timeNow().UTC(),
	}
	tracing.AddEvent(ctx, string(typ))
	if err := g.publisher.Publish(ctx, evt); err != nil {
		g.metrics.incPublishError()
		g.logger.WarnContext(ctx, "failed to publish relationship event",
			slog.String("event_type", string(typ)),
			slog.String("error", err.Error()))
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func outcome(changed bool) string {
	if changed {
		return "changed"
	}
	return "noop"
}
