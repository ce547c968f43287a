// Package source normalizes heterogeneous CI failure payloads into the
// canonical FailureRecord shape.
//
// # Adding a New Source
//
// Each source package provides an Adapter and a Register function:
//
//	func Register() {
//	    source.RegisterFactory(source.Factory{
//	        Type:        SourceType,
//	        Description: "payload format description",
//	        Adapter:     Adapter{},
//	    })
//	}
//
// Register functions are called explicitly from internal/registration
// before the runtime resolves any source type.
package source

import (
	"time"

	"github.com/failsift/failsift/internal/domain"
)

// TypeGeneric is the source type that maps canonical field names through
// unchanged. It also serves declared "custom" sources and any source type
// with no registered adapter.
const TypeGeneric = "generic"

// Adapter translates one raw source payload into a canonical failure
// record. Normalization never fails: missing or malformed fields are
// defaulted, not rejected, so a bad entry cannot poison a batch.
type Adapter interface {
	Normalize(payload map[string]any) domain.FailureRecord
}

// Factory describes a registered source adapter.
type Factory struct {
	// Type is the source type identifier carried by ingest requests
	// (e.g. "github_actions", "jenkins")
	Type string

	// Description provides a human-readable description of the source
	Description string

	// Adapter performs the payload translation
	Adapter Adapter
}

// NormalizeBatch resolves the adapter for sourceType (falling back to the
// generic adapter for unknown types) and normalizes every payload in
// order. Malformed entries come back defaulted rather than dropped.
func NormalizeBatch(sourceType string, payloads []map[string]any) []domain.FailureRecord {
	adapter := Resolve(sourceType)

	records := make([]domain.FailureRecord, 0, len(payloads))
	for _, payload := range payloads {
		records = append(records, adapter.Normalize(payload))
	}
	return records
}

// Finalize assigns the storage-owned fields a payload may not carry: a
// unique failure id and an ingest timestamp for records without one.
func Finalize(rec domain.FailureRecord, id string, now time.Time) domain.FailureRecord {
	if rec.FailureID == "" {
		rec.FailureID = id
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	return rec
}
