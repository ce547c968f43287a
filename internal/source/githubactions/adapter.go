// Package githubactions normalizes GitHub Actions workflow failure
// payloads.
package githubactions

import (
	"strings"

	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/source"
)

// SourceType is the source type identifier used in ingest requests.
const SourceType = "github_actions"

// Adapter translates workflow-run failure payloads. Service identity
// comes from the repository name (owner prefix stripped) unless the
// payload names a service directly; the failing job identifies the test.
type Adapter struct{}

// Normalize implements source.Adapter.
func (Adapter) Normalize(payload map[string]any) domain.FailureRecord {
	service := source.StringField(payload, "service_name", "")
	if service == "" {
		service = repositoryBase(source.StringField(payload, "repository", ""))
	}
	if service == "" {
		service = source.UnknownField
	}

	test := source.StringField(payload, "test_name", "")
	if test == "" {
		workflow := source.StringField(payload, "workflow", "")
		job := source.StringField(payload, "job", "")
		switch {
		case workflow != "" && job != "":
			test = workflow + "/" + job
		case job != "":
			test = job
		case workflow != "":
			test = workflow
		default:
			test = source.UnknownField
		}
	}

	rec := domain.FailureRecord{
		FailureID:    source.StringField(payload, "failure_id", ""),
		Timestamp:    source.TimeField(payload, "timestamp"),
		ServiceName:  service,
		TestName:     test,
		ErrorMessage: source.FirstString(payload, "", "error_message", "annotation", "message"),
		StackTrace:   source.FirstString(payload, "", "stack_trace", "log_excerpt", "logs"),
		Metadata:     source.Provenance(payload, "run_id", "run_attempt", "workflow", "job", "head_sha", "head_branch", "environment"),
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = source.TimeField(payload, "completed_at")
	}

	return rec
}

// repositoryBase strips the owner prefix from "owner/repo" names.
func repositoryBase(repo string) string {
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		return repo[idx+1:]
	}
	return repo
}

// Register registers this adapter with the source registry.
func Register() {
	source.RegisterFactory(source.Factory{
		Type:        SourceType,
		Description: "GitHub Actions workflow-run failure payloads",
		Adapter:     Adapter{},
	})
}

var _ source.Adapter = Adapter{}
