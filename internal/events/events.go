package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
)

// Event types emitted by the register and login flows.
const (
	UserRegistered    = "user.registered"
	UserResurrected   = "user.resurrected"
	UserLoggedIn      = "user.login"
	ProfileSyncFailed = "profile.sync_failed"
)

// Event is the JSON payload published for every domain event.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events best-effort. A failed publish never fails the caller's request.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

var _ Conn = (*nats.Conn)(nil)

// NATSPublisher publishes each event on "<prefix>.<type>".
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

func NewNATSPublisher(conn Conn, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Type, err)
	}

	msg := nats.NewMsg(p.Subject(evt.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		msg.Header.Set("X-Request-Id", reqID)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event",
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.logger.DebugContext(ctx, "Event published", slog.String("subject", msg.Subject))
	return nil
}

// Connect dials NATS. An empty url yields a Noop publisher and a nil close func.
func Connect(url, prefix, serviceName string, logger *slog.Logger) (Publisher, func(), error) {
	if url == "" {
		logger.Info("No NATS url configured, domain events are disabled")
		return Noop{}, nil, nil
	}

	nc, err := nats.Connect(url,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", slog.String("url", nc.ConnectedUrl()))
	return NewNATSPublisher(nc, prefix, logger), func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("NATS drain failed", slog.Any("error", err))
		}
	}, nil
}
