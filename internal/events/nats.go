// Package events publishes committed relationship transitions to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/onnwee/socialgraph/internal/relationship"
)

// SubjectPrefix is prepended to the event type to form the subject.
const SubjectPrefix = "relationship."

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("publisher closed")

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// conn is the subset of *nats.Conn used by the publisher.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	IsClosed() bool
	IsConnected() bool
}

// NATSPublisher implements relationship.EventPublisher over core NATS.
type NATSPublisher struct {
	conn   conn
	logger *slog.Logger
}

// Connect dials NATS and returns a publisher.
func Connect(cfg Config, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return newPublisher(nc, logger), nil
}

func newPublisher(c conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: c, logger: logger}
}

// Subject returns the subject an event type is published on.
func Subject(t relationship.EventType) string {
	return SubjectPrefix + string(t)
}

// Publish JSON-encodes evt and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, evt relationship.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn.IsClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(Subject(evt.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}

	p.logger.DebugContext(ctx, "published relationship event",
		slog.String("subject", Subject(evt.Type)),
		slog.String("actor_id", evt.ActorID))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// IsConnected reports whether the underlying connection is currently up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn.IsConnected()
}
