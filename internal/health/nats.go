package health

import (
	"context"
	"errors"
)

// ErrNotConnected is returned while the event bus connection is down.
var ErrNotConnected = errors.New("event bus not connected")

// ConnectionStatus reports whether a long-lived connection is usable.
type ConnectionStatus interface {
	IsConnected() bool
}

// NATSChecker reports the state of the event publisher's connection. NATS
// reconnects on its own, so the check only reads the client state.
type NATSChecker struct {
	conn ConnectionStatus
}

// NewNATSChecker creates a checker for conn.
func NewNATSChecker(conn ConnectionStatus) *NATSChecker {
	return &NATSChecker{conn: conn}
}

// HealthCheck fails when the connection is down or ctx is done.
func (n *NATSChecker) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.conn.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
