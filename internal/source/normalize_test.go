package source

import (
	"testing"
	"time"

	"github.com/failsift/failsift/internal/domain"
)

func TestCanonicalize_Defaults(t *testing.T) {
	rec := Canonicalize(map[string]any{})

	if rec.ServiceName != UnknownField {
		t.Errorf("ServiceName = %q, want %q", rec.ServiceName, UnknownField)
	}
	if rec.TestName != UnknownField {
		t.Errorf("TestName = %q, want %q", rec.TestName, UnknownField)
	}
	if rec.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", rec.ErrorMessage)
	}
	if rec.StackTrace != "" {
		t.Errorf("StackTrace = %q, want empty", rec.StackTrace)
	}
	if !rec.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero", rec.Timestamp)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	payload := map[string]any{
		"failure_id":    "f-1",
		"timestamp":     "2025-06-01T10:00:00Z",
		"service_name":  "api-gateway",
		"test_name":     "test_health_endpoint",
		"error_message": "Error 502: Bad Gateway",
		"stack_trace":   "at gateway.go:42",
		"metadata":      map[string]any{"build": "991"},
	}

	once := Canonicalize(payload)

	// Re-normalizing the canonical form must be a no-op
	again := Canonicalize(map[string]any{
		"failure_id":    once.FailureID,
		"timestamp":     once.Timestamp.Format(time.RFC3339),
		"service_name":  once.ServiceName,
		"test_name":     once.TestName,
		"error_message": once.ErrorMessage,
		"stack_trace":   once.StackTrace,
		"metadata":      once.Metadata,
	})

	if again.FailureID != once.FailureID ||
		!again.Timestamp.Equal(once.Timestamp) ||
		again.ServiceName != once.ServiceName ||
		again.TestName != once.TestName ||
		again.ErrorMessage != once.ErrorMessage ||
		again.StackTrace != once.StackTrace {
		t.Errorf("Canonicalize() not idempotent:\nfirst  = %+v\nsecond = %+v", once, again)
	}
	if again.Metadata["build"] != "991" {
		t.Errorf("Metadata[build] = %q, want 991", again.Metadata["build"])
	}
}

func TestStringField_Coercion(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		key     string
		def     string
		want    string
	}{
		{"string value", map[string]any{"k": "v"}, "k", "d", "v"},
		{"missing key", map[string]any{}, "k", "d", "d"},
		{"nil value", map[string]any{"k": nil}, "k", "d", "d"},
		{"whitespace only", map[string]any{"k": "  "}, "k", "d", "d"},
		{"integer-valued float", map[string]any{"k": float64(991)}, "k", "d", "991"},
		{"bool value", map[string]any{"k": true}, "k", "d", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StringField(tt.payload, tt.key, tt.def); got != tt.want {
				t.Errorf("StringField() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeField(t *testing.T) {
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload map[string]any
		want    time.Time
	}{
		{"rfc3339 string", map[string]any{"timestamp": "2025-06-01T10:00:00Z"}, want},
		{"unix seconds", map[string]any{"timestamp": float64(want.Unix())}, want},
		{"garbage string", map[string]any{"timestamp": "yesterday"}, time.Time{}},
		{"missing", map[string]any{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeField(tt.payload, "timestamp")
			if !got.Equal(tt.want) {
				t.Errorf("TimeField() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	blank := Finalize(domain.FailureRecord{}, "gen-id", now)
	if blank.FailureID != "gen-id" {
		t.Errorf("FailureID = %q, want gen-id", blank.FailureID)
	}
	if !blank.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", blank.Timestamp, now)
	}

	ts := time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	kept := Finalize(domain.FailureRecord{FailureID: "f-1", Timestamp: ts}, "gen-id", now)
	if kept.FailureID != "f-1" {
		t.Errorf("FailureID = %q, want f-1 preserved", kept.FailureID)
	}
	if !kept.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v preserved", kept.Timestamp, ts)
	}
}
