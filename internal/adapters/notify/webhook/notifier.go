// Package webhook delivers notifications as JSON POSTs to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsift/failsift/internal/core/ports"
)

// Config configures the webhook notifier.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Notifier posts notifications to an HTTP endpoint.
type Notifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a webhook notifier. The timeout bounds each delivery,
// defaulting to 10s.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		url:     cfg.URL,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// payload is the delivery body.
type payload struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Send posts the notification. Non-2xx responses are errors so the caller
// can count the delivery as failed.
func (n *Notifier) Send(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(payload{
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Ensure Notifier implements the interface.
var _ ports.Notifier = (*Notifier)(nil)
