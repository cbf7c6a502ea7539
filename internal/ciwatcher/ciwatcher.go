// Package ciwatcher polls a repo's CI provider for the latest run on the
// healing branch, detects regressions against the previous iteration, and
// decides when a workflow needs to be bootstrapped before polling can
// report anything but no_ci.
package ciwatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeline/healer/internal/model"
)

// Watcher polls a Forge until a CI run reaches a terminal state or the
// poll budget for this iteration is exhausted.
type Watcher struct {
	Forge      Forge
	Backoff    BackoffConfig
	MaxPolls   int
	PollBudget time.Duration
}

func New(forge Forge) *Watcher {
	return &Watcher{Forge: forge, Backoff: DefaultBackoff(), MaxPolls: 20, PollBudget: 5 * time.Minute}
}

// Watch polls repoSlug/branch for the run tied to commitSHA, appends the
// resulting CIRun to run.CIRuns, and flips this iteration's fixes to
// rolled_back in-place if a regression is detected. bootstrapped reports
// whether the Bootstrap sub-node has already fired once this run; when
// false and the forge reports no workflow at all, Watch returns a no_ci
// CIRun immediately without polling, so the orchestrator can route to
// Bootstrap.
func (w *Watcher) Watch(ctx context.Context, run *model.Run, repoSlug, branch, commitSHA string, iteration, failuresBefore, failuresAfter int, fixes []model.FixRecord, bootstrapped bool) (model.CIRun, []model.FixRecord, error) {
	started := time.Now()

	if !bootstrapped {
		has, err := w.Forge.HasWorkflow(ctx, repoSlug)
		if err != nil {
			return model.CIRun{}, fixes, fmt.Errorf("check workflow existence: %w", err)
		}
		if !has {
			ciRun := model.CIRun{
				Iteration:      iteration,
				CommitSHA:      commitSHA,
				Status:         model.CINoCI,
				FailuresBefore: failuresBefore,
				FailuresAfter:  failuresAfter,
				Duration:       time.Since(started),
				ObservedAt:     time.Now(),
			}
			run.CIRuns = append(run.CIRuns, ciRun)
			return ciRun, fixes, nil
		}
	}

	deadline := started.Add(w.PollBudget)
	var obs Observation
	for attempt := 1; attempt <= w.MaxPolls; attempt++ {
		var err error
		obs, err = w.Forge.LatestRun(ctx, repoSlug, branch)
		if err != nil {
			return model.CIRun{}, fixes, fmt.Errorf("poll forge: %w", err)
		}
		if obs.Status == model.CIPassed || obs.Status == model.CIFailed {
			break
		}
		if obs.Status == model.CINoCI {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		delay := DelayForAttempt(attempt, w.Backoff, fmt.Sprintf("%s:%d", run.ID, iteration))
		select {
		case <-ctx.Done():
			return model.CIRun{}, fixes, ctx.Err()
		case <-time.After(delay):
		}
	}

	ciRun := model.CIRun{
		Iteration:      iteration,
		CommitSHA:      commitSHA,
		Status:         obs.Status,
		ForgeRunID:     obs.ForgeRunID,
		WorkflowURL:    obs.WorkflowURL,
		FailuresBefore: failuresBefore,
		FailuresAfter:  failuresAfter,
		Duration:       time.Since(started),
		ObservedAt:     time.Now(),
	}

	if prev := lastCIRun(run.CIRuns); prev != nil && ciRun.FailuresAfter > prev.FailuresAfter {
		ciRun.Regressed = true
		ciRun.RolledBack = true
		ciRun.RollbackSHA = commitSHA
		for i := range fixes {
			if fixes[i].IterationApplied == iteration {
				fixes[i].Status = model.FixRolledBack
			}
		}
	}

	run.CIRuns = append(run.CIRuns, ciRun)
	return ciRun, fixes, nil
}

func lastCIRun(runs []model.CIRun) *model.CIRun {
	if len(runs) == 0 {
		return nil
	}
	return &runs[len(runs)-1]
}
