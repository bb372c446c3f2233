package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/socialgraph/internal/relationship"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
	drained  int
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained++
	c.closed = true
	return nil
}

func (c *fakeConn) IsClosed() bool { return c.closed }

func (c *fakeConn) IsConnected() bool { return !c.closed }

func TestSubject(t *testing.T) {
	tests := []struct {
		typ  relationship.EventType
		want string
	}{
		{relationship.EventFollowRequested, "relationship.follow.requested"},
		{relationship.EventFollowAccepted, "relationship.follow.accepted"},
		{relationship.EventBlocked, "relationship.block.created"},
	}
	for _, tt := range tests {
		if got := Subject(tt.typ); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	c := &fakeConn{}
	p := newPublisher(c, nil)

	evt := relationship.Event{
		Type:       relationship.EventFollowAccepted,
		ActorID:    "bob",
		TargetID:   "alice",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(c.subjects) != 1 || c.subjects[0] != "relationship.follow.accepted" {
		t.Fatalf("unexpected subjects %v", c.subjects)
	}

	var decoded relationship.Event
	if err := json.Unmarshal(c.payloads[0], &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.ActorID != "bob" || decoded.TargetID != "alice" || !decoded.OccurredAt.Equal(evt.OccurredAt) {
		t.Errorf("decoded event = %+v", decoded)
	}
}

func TestNATSPublisher_PublishError(t *testing.T) {
	cause := errors.New("nats: connection closed")
	p := newPublisher(&fakeConn{err: cause}, nil)

	err := p.Publish(context.Background(), relationship.Event{Type: relationship.EventBlocked})
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	c := &fakeConn{}
	p := newPublisher(c, nil)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if c.drained != 1 {
		t.Errorf("expected one drain, got %d", c.drained)
	}

	err := p.Publish(context.Background(), relationship.Event{Type: relationship.EventBlocked})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	c := &fakeConn{}
	p := newPublisher(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, relationship.Event{Type: relationship.EventBlocked}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(c.subjects) != 0 {
		t.Error("nothing should be published on a canceled context")
	}
}

func TestNATSPublisher_ImplementsEventPublisher(t *testing.T) {
	var _ relationship.EventPublisher = (*NATSPublisher)(nil)
}

func TestIsConnected(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, nil)
	if !p.IsConnected() {
		t.Error("expected connected before Close")
	}
	p.Close()
	if p.IsConnected() {
		t.Error("expected disconnected after Close")
	}
}
