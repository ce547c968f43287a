package registration

import (
	"github.com/failsift/failsift/internal/source/generic"
	"github.com/failsift/failsift/internal/source/githubactions"
	"github.com/failsift/failsift/internal/source/gitlab"
	"github.com/failsift/failsift/internal/source/jenkins"
)

// RegisterBuiltins registers the built-in source adapters explicitly.
// This replaces init-based side effects and is intended to be called from
// cmd/failsift and tests before resolving any source type.
func RegisterBuiltins() {
	githubactions.Register()
	jenkins.Register()
	gitlab.Register()
	generic.Register()
}
