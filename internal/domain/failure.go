// Package domain defines the canonical records and error types for the
// pattern-detection engine.
package domain

import (
	"strings"
	"time"
)

// FailureRecord is one observed test failure in canonical form.
// Records are immutable once stored; the Failure Store owns their lifetime.
type FailureRecord struct {
	FailureID    string            `json:"failure_id"`
	Timestamp    time.Time         `json:"timestamp"`
	ServiceName  string            `json:"service_name"`
	TestName     string            `json:"test_name"`
	ErrorMessage string            `json:"error_message"`
	StackTrace   string            `json:"stack_trace"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ErrorType returns the normalized error type for this record: the portion
// of the error message before the first colon, or the full message when no
// colon is present.
func (f FailureRecord) ErrorType() string {
	msg := strings.TrimSpace(f.ErrorMessage)
	if idx := strings.Index(msg, ":"); idx >= 0 {
		return strings.TrimSpace(msg[:idx])
	}
	return msg
}

// Text returns the free-text blob used for feature extraction.
func (f FailureRecord) Text() string {
	if f.StackTrace == "" {
		return f.ErrorMessage
	}
	return f.ErrorMessage + " " + f.StackTrace
}
