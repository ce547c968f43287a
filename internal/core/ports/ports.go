// Package ports defines the interfaces the detection runtime depends on.
// Implementations live under internal/storage and internal/adapters;
// the orchestrator receives them by injection at construction.
package ports

import (
	"context"
	"time"

	"github.com/failsift/failsift/internal/domain"
)

// FailureStore is the append-only store of canonical failure records.
type FailureStore interface {
	// PutFailure stores a failure record and returns its unique id.
	PutFailure(ctx context.Context, record *domain.FailureRecord) (string, error)

	// QueryFailures returns all failures with a timestamp at or after
	// since, ordered by timestamp ascending.
	QueryFailures(ctx context.Context, since time.Time) ([]domain.FailureRecord, error)

	// CountSince returns the number of failures in the window.
	CountSince(ctx context.Context, since time.Time) (int, error)

	// PurgeBefore removes failures older than cutoff and reports how many
	// were deleted. Retention enforcement lives here, not in the engine.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the storage connection.
	Close() error
}

// ActionFilter narrows an Action Store query. Zero values are ignored.
type ActionFilter struct {
	Since      time.Time
	AgentType  string
	ActionType string
	PatternID  string
	Limit      int
}

// ActionStore is the append-only store of action envelopes.
type ActionStore interface {
	// PutAction stores an action and returns its unique id.
	PutAction(ctx context.Context, action *domain.Action) (string, error)

	// QueryActions returns actions matching the filter, ordered by
	// timestamp descending and capped at the filter limit.
	QueryActions(ctx context.Context, filter ActionFilter) ([]domain.Action, error)

	// Close closes the storage connection.
	Close() error
}

// Notifier dispatches a human-readable alert. Delivery is best-effort;
// callers treat errors as per-pattern, never run-fatal.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// ClusterInvoker produces pattern candidates from a failure batch via the
// learned strategy. Any error degrades the caller to the fallback
// heuristic; implementations must never panic.
type ClusterInvoker interface {
	Invoke(ctx context.Context, failures []domain.FailureRecord) ([]domain.Candidate, error)
}
