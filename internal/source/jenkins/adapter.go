// Package jenkins normalizes Jenkins build failure payloads.
package jenkins

import (
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/source"
)

// SourceType is the source type identifier used in ingest requests.
const SourceType = "jenkins"

// Adapter translates Jenkins build payloads. The job name doubles as the
// service identity when no service is declared; the failing stage
// identifies the test.
type Adapter struct{}

// Normalize implements source.Adapter.
func (Adapter) Normalize(payload map[string]any) domain.FailureRecord {
	rec := domain.FailureRecord{
		FailureID:    source.StringField(payload, "failure_id", ""),
		Timestamp:    source.TimeField(payload, "timestamp"),
		ServiceName:  source.FirstString(payload, source.UnknownField, "service_name", "job_name"),
		TestName:     source.FirstString(payload, source.UnknownField, "test_name", "stage", "job_name"),
		ErrorMessage: source.FirstString(payload, "", "error_message", "failure_message", "console_excerpt"),
		StackTrace:   source.FirstString(payload, "", "stack_trace", "console_log"),
		Metadata:     source.Provenance(payload, "build_number", "build_url", "node", "stage", "git_commit", "git_branch"),
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = source.TimeField(payload, "build_timestamp")
	}

	return rec
}

// Register registers this adapter with the source registry.
func Register() {
	source.RegisterFactory(source.Factory{
		Type:        SourceType,
		Description: "Jenkins build failure payloads",
		Adapter:     Adapter{},
	})
}

var _ source.Adapter = Adapter{}
