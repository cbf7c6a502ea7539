package ciwatcher

import (
	"context"
	"testing"
	"time"

	"github.com/forgeline/healer/internal/model"
)

type fakeForge struct {
	hasWorkflow bool
	sequence    []Observation
	calls       int
}

func (f *fakeForge) HasWorkflow(ctx context.Context, repoSlug string) (bool, error) {
	return f.hasWorkflow, nil
}

func (f *fakeForge) LatestRun(ctx context.Context, repoSlug, branch string) (Observation, error) {
	if f.calls >= len(f.sequence) {
		return f.sequence[len(f.sequence)-1], nil
	}
	obs := f.sequence[f.calls]
	f.calls++
	return obs, nil
}

func fastWatcher(forge Forge) *Watcher {
	w := New(forge)
	w.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Factor: 1, MaxDelay: time.Millisecond}
	w.PollBudget = time.Second
	w.MaxPolls = 10
	return w
}

func TestWatchReturnsNoCIWhenNoWorkflowAndNotBootstrapped(t *testing.T) {
	forge := &fakeForge{hasWorkflow: false}
	w := fastWatcher(forge)
	run := &model.Run{ID: "r1"}

	ci, _, err := w.Watch(context.Background(), run, "org/repo", "heal", "sha1", 1, 2, 2, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if ci.Status != model.CINoCI {
		t.Errorf("expected no_ci, got %v", ci.Status)
	}
	if forge.calls != 0 {
		t.Error("expected no polling when workflow doesn't exist")
	}
}

func TestWatchPollsUntilTerminal(t *testing.T) {
	forge := &fakeForge{
		hasWorkflow: true,
		sequence: []Observation{
			{Status: model.CIPending},
			{Status: model.CIRunning},
			{Status: model.CIPassed, ForgeRunID: "42"},
		},
	}
	w := fastWatcher(forge)
	run := &model.Run{ID: "r1"}

	ci, _, err := w.Watch(context.Background(), run, "org/repo", "heal", "sha1", 1, 2, 0, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if ci.Status != model.CIPassed || ci.ForgeRunID != "42" {
		t.Errorf("unexpected result: %+v", ci)
	}
	if len(run.CIRuns) != 1 {
		t.Errorf("expected 1 CIRun recorded, got %d", len(run.CIRuns))
	}
}

func TestWatchDetectsRegressionAndRollsBackFixes(t *testing.T) {
	forge := &fakeForge{hasWorkflow: true, sequence: []Observation{{Status: model.CIFailed}}}
	w := fastWatcher(forge)
	run := &model.Run{ID: "r1", CIRuns: []model.CIRun{{Iteration: 1, FailuresAfter: 1}}}
	fixes := []model.FixRecord{{ID: "f1", IterationApplied: 2, Status: model.FixApplied}}

	ci, updated, err := w.Watch(context.Background(), run, "org/repo", "heal", "sha2", 2, 1, 3, fixes, true)
	if err != nil {
		t.Fatal(err)
	}
	if !ci.Regressed || !ci.RolledBack {
		t.Errorf("expected regression to be detected: %+v", ci)
	}
	if updated[0].Status != model.FixRolledBack {
		t.Errorf("expected fix to be rolled back, got %v", updated[0].Status)
	}
}

func TestWatchNoRegressionWhenFailuresDoNotIncrease(t *testing.T) {
	forge := &fakeForge{hasWorkflow: true, sequence: []Observation{{Status: model.CIFailed}}}
	w := fastWatcher(forge)
	run := &model.Run{ID: "r1", CIRuns: []model.CIRun{{Iteration: 1, FailuresAfter: 3}}}

	ci, _, err := w.Watch(context.Background(), run, "org/repo", "heal", "sha2", 2, 3, 1, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if ci.Regressed {
		t.Error("did not expect a regression when failures decreased")
	}
}

func TestDelayForAttemptGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Factor: 2, MaxDelay: 300 * time.Millisecond, Jitter: false}
	if got := DelayForAttempt(1, cfg, "seed"); got != 100*time.Millisecond {
		t.Errorf("attempt 1: got %v, want 100ms", got)
	}
	if got := DelayForAttempt(2, cfg, "seed"); got != 200*time.Millisecond {
		t.Errorf("attempt 2: got %v, want 200ms", got)
	}
	if got := DelayForAttempt(5, cfg, "seed"); got != 300*time.Millisecond {
		t.Errorf("attempt 5: got %v, want capped at 300ms", got)
	}
}
