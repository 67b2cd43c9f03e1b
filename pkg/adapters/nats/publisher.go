// Package nats publishes note change events to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aretw0/pinboard/pkg/core"
)

// DefaultPrefix is the subject prefix; events go to <prefix>.<type>, e.g. pinboard.notes.create.
const DefaultPrefix = "pinboard.notes"

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
	IsConnected() bool
}

// Publisher implements core.Publisher over a NATS connection.
type Publisher struct {
	nc     conn
	prefix string
	logger *slog.Logger
}

// Config holds connection settings.
type Config struct {
	URL    string
	Prefix string
	Name   string // client name reported to the server
	Logger *slog.Logger
}

// Connect dials cfg.URL and returns a publisher owning the connection.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Name == "" {
		cfg.Name = "pinboard"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newPublisher(nc, cfg.Prefix, logger), nil
}

func newPublisher(nc conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the subject an event of type t is published on.
func (p *Publisher) Subject(t core.EventType) string {
	return p.prefix + "." + strings.ToLower(string(t))
}

// Publish sends e as JSON. The payload carries only the event, never note content.
func (p *Publisher) Publish(ctx context.Context, e core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(e.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", e, err)
	}
	p.logger.Debug("event published", "subject", p.Subject(e.Type), "id", e.ID)
	return nil
}

// Close flushes pending messages and drains the connection.
func (p *Publisher) Close() error {
	if !p.nc.IsConnected() {
		return nil
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Warn("nats flush failed", "error", err)
	}
	return p.nc.Drain()
}

// State implements introspection.Introspectable.
func (p *Publisher) State() any {
	return map[string]any{
		"prefix":    p.prefix,
		"connected": p.nc.IsConnected(),
	}
}

// ComponentType implements introspection.Component.
func (p *Publisher) ComponentType() string {
	return "nats-publisher"
}

var _ core.Publisher = (*Publisher)(nil)
