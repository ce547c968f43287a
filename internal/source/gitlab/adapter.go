// Package gitlab normalizes GitLab CI job failure payloads.
package gitlab

import (
	"strings"

	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/source"
)

// SourceType is the source type identifier used in ingest requests.
const SourceType = "gitlab"

// Adapter translates GitLab CI payloads. Service identity comes from the
// project path (namespace stripped) unless declared; the failing job
// identifies the test.
type Adapter struct{}

// Normalize implements source.Adapter.
func (Adapter) Normalize(payload map[string]any) domain.FailureRecord {
	service := source.StringField(payload, "service_name", "")
	if service == "" {
		service = projectBase(source.StringField(payload, "project", ""))
	}
	if service == "" {
		service = source.UnknownField
	}

	rec := domain.FailureRecord{
		FailureID:    source.StringField(payload, "failure_id", ""),
		Timestamp:    source.TimeField(payload, "timestamp"),
		ServiceName:  service,
		TestName:     source.FirstString(payload, source.UnknownField, "test_name", "job_name", "stage"),
		ErrorMessage: source.FirstString(payload, "", "error_message", "failure_reason", "message"),
		StackTrace:   source.FirstString(payload, "", "stack_trace", "trace_excerpt", "trace"),
		Metadata:     source.Provenance(payload, "pipeline_id", "job_id", "ref", "commit_sha", "environment", "runner"),
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = source.TimeField(payload, "finished_at")
	}

	return rec
}

// projectBase strips the namespace from "group/subgroup/project" paths.
func projectBase(project string) string {
	if idx := strings.LastIndex(project, "/"); idx >= 0 {
		return project[idx+1:]
	}
	return project
}

// Register registers this adapter with the source registry.
func Register() {
	source.RegisterFactory(source.Factory{
		Type:        SourceType,
		Description: "GitLab CI job failure payloads",
		Adapter:     Adapter{},
	})
}

var _ source.Adapter = Adapter{}
