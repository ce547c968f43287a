// Package generic is the source adapter for payloads already keyed by
// canonical field names. It also backs declared "custom" sources and any
// source type without a registered adapter.
package generic

import (
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/source"
)

// SourceType is the source type identifier used in ingest requests.
const SourceType = source.TypeGeneric

// TypeCustom is the declared-custom source type served by this adapter.
const TypeCustom = "custom"

// Adapter maps canonical field names through unchanged, defaulting
// whatever is missing.
type Adapter struct{}

// Normalize implements source.Adapter.
func (Adapter) Normalize(payload map[string]any) domain.FailureRecord {
	return source.Canonicalize(payload)
}

// Register registers this adapter for both the generic and custom types.
func Register() {
	source.RegisterFactory(source.Factory{
		Type:        SourceType,
		Description: "Canonical field names mapped through unchanged",
		Adapter:     Adapter{},
	})
	source.RegisterFactory(source.Factory{
		Type:        TypeCustom,
		Description: "Declared custom sources using canonical field names",
		Adapter:     Adapter{},
	})
}

var _ source.Adapter = Adapter{}
