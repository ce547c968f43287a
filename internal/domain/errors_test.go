package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDetectionError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DetectionError
		expected string
	}{
		{
			name:     "kind and message",
			err:      &DetectionError{Kind: ErrorKindTransientFetch, Message: "failure store unreachable"},
			expected: "transient_fetch: failure store unreachable",
		},
		{
			name:     "kind, message, and cause",
			err:      &DetectionError{Kind: ErrorKindClusteringUnavailable, Message: "invoke clustering", Err: errors.New("timeout")},
			expected: "clustering_unavailable: invoke clustering: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDetectionError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrTransientFetch("query failures", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() = false, want true for wrapped cause")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
		want bool
	}{
		{
			name: "matching kind",
			err:  ErrPersistence("put action", errors.New("disk full")),
			kind: ErrorKindPersistence,
			want: true,
		},
		{
			name: "mismatched kind",
			err:  ErrPersistence("put action", nil),
			kind: ErrorKindTransientFetch,
			want: false,
		},
		{
			name: "wrapped detection error",
			err:  fmt.Errorf("run failed: %w", ErrClusteringUnavailable("endpoint down", nil)),
			kind: ErrorKindClusteringUnavailable,
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			kind: ErrorKindPersistence,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind() = %v, want %v", got, tt.want)
			}
		})
	}
}
