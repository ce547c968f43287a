package domain

import "time"

// Strategy identifies which clustering path produced a set of patterns.
type Strategy string

const (
	// StrategyLearned means density clustering over the feature space
	// (local DBSCAN or a remote clustering service).
	StrategyLearned Strategy = "learned"

	// StrategyFallback means the deterministic service/error-type grouping.
	StrategyFallback Strategy = "fallback"

	// StrategyNone means no clustering ran (empty batch).
	StrategyNone Strategy = "none"
)

// Pattern is a group of two or more failures judged related by shared
// service and error characteristics. Patterns are never mutated after
// creation; each maps to exactly one persisted Action.
type Pattern struct {
	PatternID        string    `json:"pattern_id"`
	AffectedServices []string  `json:"affected_services"`
	ErrorTypes       []string  `json:"error_types"`
	FailureCount     int       `json:"failure_count"`
	Confidence       float64   `json:"confidence"`
	FirstOccurrence  time.Time `json:"first_occurrence"`
	LastOccurrence   time.Time `json:"last_occurrence"`
	FailureIDs       []string  `json:"failure_ids,omitempty"`
}

// Candidate is a pattern candidate: the constituent failures of one
// proposed grouping. Both clustering strategies emit this shape, and
// candidates with fewer than two records are discarded before scoring.
type Candidate struct {
	Records []FailureRecord `json:"records"`
}

// DetectionReport summarizes one detection run.
type DetectionReport struct {
	RunID             string        `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	FailuresFetched   int           `json:"failures_fetched"`
	PatternsDetected  int           `json:"patterns_detected"`
	ActionsPersisted  int           `json:"actions_persisted"`
	NotificationsSent int           `json:"notifications_sent"`
	Strategy          Strategy      `json:"strategy"`
	Degraded          bool          `json:"degraded"`
	DegradedReason    string        `json:"degraded_reason,omitempty"`
	PatternErrors     []string      `json:"pattern_errors,omitempty"`
	Patterns          []Pattern     `json:"patterns"`
}
