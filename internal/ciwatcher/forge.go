package ciwatcher

import (
	"context"

	"github.com/forgeline/healer/internal/model"
)

// Observation is one poll's view of the latest CI run for a branch.
type Observation struct {
	Status      model.CIStatus
	ForgeRunID  string
	WorkflowURL string
}

// Forge abstracts whatever CI provider a repo is hosted against (GitHub
// Actions, GitLab CI, ...). The wire protocol of any specific provider is
// out of scope; only this shape is required of an integration.
type Forge interface {
	// LatestRun returns the most recent run for branch on repoSlug, or
	// Observation{Status: model.CINoCI} if no workflow has ever run.
	LatestRun(ctx context.Context, repoSlug, branch string) (Observation, error)
	// HasWorkflow reports whether the repo already has a CI workflow
	// file, so the watcher only bootstraps once.
	HasWorkflow(ctx context.Context, repoSlug string) (bool, error)
}
