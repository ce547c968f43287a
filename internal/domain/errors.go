package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a detection-run failure. The kind decides how the
// orchestrator reacts: transient fetch failures are fatal to the run,
// clustering failures degrade to the fallback heuristic, persistence
// failures are isolated to one pattern, and malformed input is defaulted
// by the normalizer and never fatal.
type ErrorKind string

const (
	// ErrorKindTransientFetch indicates the Failure Store or Action Store
	// was unreachable. Fatal to the current run; retried on the next tick.
	ErrorKindTransientFetch ErrorKind = "transient_fetch"

	// ErrorKindClusteringUnavailable indicates the learned clustering path
	// failed (endpoint down, malformed response, timeout). Recovered by
	// the deterministic fallback; logged, never surfaced.
	ErrorKindClusteringUnavailable ErrorKind = "clustering_unavailable"

	// ErrorKindPersistence indicates writing one Action or notifying one
	// pattern failed. Isolated to that pattern.
	ErrorKindPersistence ErrorKind = "persistence"

	// ErrorKindMalformedInput indicates a failure record is missing
	// expected fields. Normalized with defaults, never fatal.
	ErrorKindMalformedInput ErrorKind = "malformed_input"
)

// DetectionError is the canonical error for the detection engine.
type DetectionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *DetectionError) Unwrap() error {
	return e.Err
}

// NewDetectionError creates a detection error of the given kind.
func NewDetectionError(kind ErrorKind, message string) *DetectionError {
	return &DetectionError{Kind: kind, Message: message}
}

// WithCause attaches the underlying error.
func (e *DetectionError) WithCause(err error) *DetectionError {
	e.Err = err
	return e
}

// Convenience constructors for the taxonomy.

// ErrTransientFetch creates a store-unreachable error.
func ErrTransientFetch(message string, cause error) *DetectionError {
	return NewDetectionError(ErrorKindTransientFetch, message).WithCause(cause)
}

// ErrClusteringUnavailable creates a learned-clustering failure.
func ErrClusteringUnavailable(message string, cause error) *DetectionError {
	return NewDetectionError(ErrorKindClusteringUnavailable, message).WithCause(cause)
}

// ErrPersistence creates a per-pattern persistence failure.
func ErrPersistence(message string, cause error) *DetectionError {
	return NewDetectionError(ErrorKindPersistence, message).WithCause(cause)
}

// ErrMalformedInput creates a malformed-record error.
func ErrMalformedInput(message string, cause error) *DetectionError {
	return NewDetectionError(ErrorKindMalformedInput, message).WithCause(cause)
}

// IsKind reports whether err is (or wraps) a DetectionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
