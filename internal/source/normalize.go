package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/failsift/failsift/internal/domain"
)

// UnknownField is the default for required identity fields a payload does
// not carry.
const UnknownField = "unknown"

// Canonicalize builds a failure record from a payload keyed by canonical
// field names. Missing identity fields default to "unknown", missing text
// fields to the empty string; nothing errors. Canonicalizing an
// already-canonical record is a no-op.
func Canonicalize(payload map[string]any) domain.FailureRecord {
	return domain.FailureRecord{
		FailureID:    StringField(payload, "failure_id", ""),
		Timestamp:    TimeField(payload, "timestamp"),
		ServiceName:  StringField(payload, "service_name", UnknownField),
		TestName:     StringField(payload, "test_name", UnknownField),
		ErrorMessage: StringField(payload, "error_message", ""),
		StackTrace:   StringField(payload, "stack_trace", ""),
		Metadata:     MetadataField(payload, "metadata"),
	}
}

// StringField coerces payload[key] to a string, returning def when the key
// is absent or the value is empty after trimming.
func StringField(payload map[string]any, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	case float64:
		// JSON numbers decode as float64; render integers without a point
		if val == float64(int64(val)) {
			s = fmt.Sprintf("%d", int64(val))
		} else {
			s = fmt.Sprintf("%v", val)
		}
	default:
		s = fmt.Sprintf("%v", val)
	}

	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// FirstString returns the first non-empty string among the given keys,
// or def when none is present.
func FirstString(payload map[string]any, def string, keys ...string) string {
	for _, key := range keys {
		if s := StringField(payload, key, ""); s != "" {
			return s
		}
	}
	return def
}

// TimeField parses payload[key] as a timestamp. RFC3339 strings, unix
// seconds, and time.Time values are accepted; anything else yields the
// zero time, which Finalize later replaces with the ingest time.
func TimeField(payload map[string]any, key string) time.Time {
	v, ok := payload[key]
	if !ok || v == nil {
		return time.Time{}
	}

	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		if ts, err := time.Parse(time.RFC3339, val); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return ts
		}
		return time.Time{}
	case float64:
		if val <= 0 {
			return time.Time{}
		}
		return time.Unix(int64(val), 0).UTC()
	case int64:
		if val <= 0 {
			return time.Time{}
		}
		return time.Unix(val, 0).UTC()
	default:
		return time.Time{}
	}
}

// MetadataField coerces payload[key] into a string-valued metadata map.
func MetadataField(payload map[string]any, key string) map[string]string {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}

	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return nil
		}
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case map[string]any:
		if len(val) == 0 {
			return nil
		}
		out := make(map[string]string, len(val))
		for k := range val {
			out[k] = StringField(val, k, "")
		}
		return out
	default:
		return nil
	}
}

// Provenance assembles a metadata map from payload keys, skipping fields
// the payload does not carry.
func Provenance(payload map[string]any, keys ...string) map[string]string {
	meta := make(map[string]string)
	for _, key := range keys {
		if s := StringField(payload, key, ""); s != "" {
			meta[key] = s
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
