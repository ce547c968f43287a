// Package remote invokes an external clustering service over HTTP. The
// service receives the failure batch and replies with index groups; any
// failure of the call surfaces as a clustering-unavailable error, which
// the detection engine absorbs by falling back.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
)

// Config configures the clustering client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Retries  int
}

// Client calls a remote clustering service.
type Client struct {
	endpoint string
	retries  int
	client   *http.Client
}

// New creates a clustering client. The timeout bounds each attempt,
// defaulting to 10s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: cfg.Endpoint,
		retries:  cfg.Retries,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Invoke sends the batch to the clustering service and converts the index
// groups it returns into candidates.
func (c *Client) Invoke(ctx context.Context, failures []domain.FailureRecord) ([]domain.Candidate, error) {
	var lastErr error

	attempts := c.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		candidates, err := c.doRequest(ctx, failures)
		if err == nil {
			return candidates, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	return nil, domain.ErrClusteringUnavailable("clustering service call failed", lastErr)
}

func (c *Client) doRequest(ctx context.Context, failures []domain.FailureRecord) ([]domain.Candidate, error) {
	body, err := json.Marshal(ports.ClusterRequest{Failures: failures})
	if err != nil {
		return nil, fmt.Errorf("marshal cluster request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clustering request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("clustering service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out ports.ClusterResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cluster response: %w", err)
	}

	groups := make([][]int, len(out.Clusters))
	for i, g := range out.Clusters {
		for _, idx := range g.Indices {
			if idx < 0 || idx >= len(failures) {
				return nil, fmt.Errorf("cluster response references index %d outside batch of %d", idx, len(failures))
			}
		}
		groups[i] = g.Indices
	}

	return cluster.FromIndexGroups(failures, groups), nil
}

// Ensure Client implements the interface.
var _ ports.ClusterInvoker = (*Client)(nil)
