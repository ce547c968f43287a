// Package nats publishes notifications to a NATS subject so downstream
// consumers (chat bridges, incident tooling) can react to detected patterns.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/logging"
)

// DefaultSubject is used when the configuration names none.
const DefaultSubject = "failsift.alerts"

// Config configures the NATS notifier.
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Notifier publishes notifications to NATS. The connection survives broker
// restarts; publishes during a reconnect are buffered by the client.
type Notifier struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// New connects to NATS and returns the notifier.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	name := cfg.Name
	if name == "" {
		name = "failsift"
	}
	if logger == nil {
		logger = logging.New("notify")
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Notifier{
		nc:      nc,
		subject: subject,
		logger:  logger,
	}, nil
}

// message is the published envelope.
type message struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Send publishes the notification to the configured subject.
func (n *Notifier) Send(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(message{
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes buffered publishes and closes the connection.
func (n *Notifier) Close() error {
	if n.nc.IsClosed() {
		return nil
	}
	return n.nc.Drain()
}

// Ensure Notifier implements the interface.
var _ ports.Notifier = (*Notifier)(nil)
