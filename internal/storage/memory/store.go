// Package memory is an in-memory implementation of the failure and action
// stores, used in tests and for running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
)

const defaultQueryLimit = 100

// Store holds failures and actions in memory behind a single lock.
type Store struct {
	mu       sync.RWMutex
	failures []domain.FailureRecord
	actions  []domain.Action
}

var (
	_ ports.FailureStore = (*Store)(nil)
	_ ports.ActionStore  = (*Store)(nil)
)

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// PutFailure stores a failure record, assigning an id and timestamp when
// missing.
func (s *Store) PutFailure(ctx context.Context, record *domain.FailureRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.FailureID == "" {
		record.FailureID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()

	s.failures = append(s.failures, *record)
	return record.FailureID, nil
}

// QueryFailures returns failures with a timestamp at or after since,
// ordered by timestamp ascending.
func (s *Store) QueryFailures(ctx context.Context, since time.Time) ([]domain.FailureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.FailureRecord
	for _, rec := range s.failures {
		if rec.Timestamp.Before(since) {
			continue
		}
		result = append(result, rec)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// CountSince returns the number of failures in the window.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.failures {
		if !rec.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// PurgeBefore removes failures older than cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.failures[:0]
	var deleted int64
	for _, rec := range s.failures {
		if rec.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.failures = kept

	return deleted, nil
}

// PutAction stores an action envelope, assigning an id and timestamp when
// missing.
func (s *Store) PutAction(ctx context.Context, action *domain.Action) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.ActionID == "" {
		action.ActionID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	action.Timestamp = action.Timestamp.UTC()

	s.actions = append(s.actions, *action)
	return action.ActionID, nil
}

// QueryActions returns actions matching the filter, newest first.
func (s *Store) QueryActions(ctx context.Context, filter ports.ActionFilter) ([]domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Action
	for _, a := range s.actions {
		if !filter.Since.IsZero() && a.Timestamp.Before(filter.Since) {
			continue
		}
		if filter.AgentType != "" && a.AgentType != filter.AgentType {
			continue
		}
		if filter.ActionType != "" && a.ActionType != filter.ActionType {
			continue
		}
		if filter.PatternID != "" && a.PatternID != filter.PatternID {
			continue
		}
		result = append(result, a)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
