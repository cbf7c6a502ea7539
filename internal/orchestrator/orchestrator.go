// Package orchestrator drives one repair run through the fixed pipeline:
// Scanner, then a Runner/Analyzer/Synthesizer/Publisher/CIWatcher loop
// that repeats until the run passes, exhausts its iteration budget, or
// is quarantined, then Scorer. It owns routing between nodes, the
// recursion cap, per-node tracing, and the live event stream.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forgeline/healer/internal/analyzer"
	"github.com/forgeline/healer/internal/ciwatcher"
	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/eventbus"
	"github.com/forgeline/healer/internal/gitutil"
	"github.com/forgeline/healer/internal/journal"
	"github.com/forgeline/healer/internal/metrics"
	"github.com/forgeline/healer/internal/model"
	"github.com/forgeline/healer/internal/publisher"
	"github.com/forgeline/healer/internal/runner"
	"github.com/forgeline/healer/internal/scanner"
	"github.com/forgeline/healer/internal/scorer"
	"github.com/forgeline/healer/internal/synthesizer"
)

// maxVisits guards against any accidental routing cycle, irrespective of
// which predicate is doing the routing.
const maxVisits = 100

// Node name constants, recorded on Run.CurrentNode and in every trace
// record and event this package emits.
const (
	NodeScanner     = "scanner"
	NodeRunner      = "runner"
	NodeAnalyzer    = "analyzer"
	NodeSynthesizer = "synthesizer"
	NodePublisher   = "publisher"
	NodeCIWatcher   = "ciwatcher"
	NodeBootstrap   = "bootstrap"
	NodeScorer      = "scorer"
)

// Orchestrator holds everything one run needs to execute: the
// dependencies every node calls into, plus the observability surface
// (journal, live events, metrics, logger) that wraps each node call.
// One Orchestrator drives exactly one run — its Events broadcaster and
// Logger are expected to already be scoped to that run's identity.
type Orchestrator struct {
	Journal    journal.Journal
	Events     *eventbus.Broadcaster
	Metrics    *metrics.Collectors
	Logger     *zap.Logger
	Synth      *synthesizer.Synthesizer
	Completion *completion.Client
	Watcher    *ciwatcher.Watcher

	WorkRoot   string // parent directory under which each run's clone lives
	OutputsDir string // parent directory under which results.json/report.pdf live
	Remote     string // git remote name to push to, normally "origin"

	seq int64 // live-event sequence counter for this run
}

// New builds an Orchestrator from its dependencies. Remote defaults to
// "origin" when empty.
func New(j journal.Journal, events *eventbus.Broadcaster, m *metrics.Collectors, logger *zap.Logger, synth *synthesizer.Synthesizer, comp *completion.Client, watcher *ciwatcher.Watcher, workRoot, outputsDir, remote string) *Orchestrator {
	if remote == "" {
		remote = "origin"
	}
	return &Orchestrator{
		Journal:    j,
		Events:     events,
		Metrics:    m,
		Logger:     logger,
		Synth:      synth,
		Completion: comp,
		Watcher:    watcher,
		WorkRoot:   workRoot,
		OutputsDir: outputsDir,
		Remote:     remote,
	}
}

// Execute runs one repair attempt against spec's repository from
// Scanner through Scorer and returns the finalized results. On any
// uncaught node error the run is marked failed, a terminal event is
// emitted, and the error is returned to the caller — the orchestrator
// never lets a node's panic escape silently.
func (o *Orchestrator) Execute(ctx context.Context, spec model.RunSpec) (results scorer.Results, execErr error) {
	spec = spec.ApplyDefaults()

	runID := spec.RunID
	if runID == "" {
		runID = model.NewRunID()
	}

	run := &model.Run{
		ID:            runID,
		RepoURL:       spec.RepoURL,
		BaseBranch:    spec.BaseBranch,
		HealBranch:    model.DeriveHealBranch(spec.TeamName, spec.LeaderName),
		TeamName:      spec.TeamName,
		LeaderName:    spec.LeaderName,
		Status:        model.RunPending,
		MaxIterations: spec.MaxIterations,
		Iteration:     1,
		StartedAt:     time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("node panic", zap.Any("recovered", r), zap.String("run_id", run.ID))
			results, execErr = o.finalizeCrashed(ctx, run, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	o.Metrics.RunStarted()
	o.emit(run, model.EventRunStarted, "", run.Iteration, "run started", nil)

	run.Status = model.RunScanning
	workDir := filepath.Join(o.WorkRoot, run.ID)
	if err := o.runScanner(ctx, run, workDir); err != nil {
		return o.finalizeFailed(ctx, run, err)
	}

	var (
		lastCIStatus     model.CIStatus
		quarantineReason string
		zeroTestsOnFinal bool
		bootstrapped     bool
		visits           int
	)

iterations:
	for {
		visits++
		if visits > maxVisits {
			return o.finalizeFailed(ctx, run, fmt.Errorf("recursion cap of %d node visits exceeded", maxVisits))
		}
		if err := ctx.Err(); err != nil {
			return o.finalizeCancelled(ctx, run, err)
		}

		o.emit(run, model.EventIterationStart, "", run.Iteration, fmt.Sprintf("iteration %d started", run.Iteration), nil)

		run.Status = model.RunTesting
		runResult, err := o.runRunner(ctx, run)
		if err != nil {
			return o.finalizeFailed(ctx, run, err)
		}

		run.Status = model.RunAnalyzing
		failures, err := o.runAnalyzer(ctx, run, spec, runResult)
		if err != nil {
			return o.finalizeFailed(ctx, run, err)
		}

		// Routing after Analyzer (spec §4.1): exit_code==0 OR no
		// failures routes straight to Scorer.
		if runResult.ExitCode == 0 || len(failures) == 0 {
			zeroTestsOnFinal = true
			break iterations
		}

		run.Status = model.RunFixing
		appliedThisIter := o.runSynthesizer(ctx, run, failures)

		run.Status = model.RunPublishing
		pubResult, err := o.runPublisher(ctx, run)
		if err != nil {
			return o.finalizeFailed(ctx, run, err)
		}
		if pubResult.Quarantined {
			quarantineReason = pubResult.Error
			run.QuarantineReason = quarantineReason
			break iterations
		}
		// Routing after Publisher: a commit/push failure or a no-op
		// publish (nothing pending) skips CIWatcher entirely.
		if strings.Contains(pubResult.Error, "commit/push failed") || !pubResult.Pushed {
			break iterations
		}
		o.emit(run, model.EventPushed, NodePublisher, run.Iteration, pubResult.CommitMessage, map[string]any{"commit_sha": pubResult.CommitSHA})

		run.Status = model.RunWatchingCI
		failuresBefore := len(failures)
		failuresAfter := failuresBefore - appliedThisIter
		if failuresAfter < 0 {
			failuresAfter = 0
		}

		ciRun, bootstrappedNow, err := o.runCIWatcher(ctx, run, pubResult.CommitSHA, failuresBefore, failuresAfter, bootstrapped)
		if err != nil {
			return o.finalizeFailed(ctx, run, err)
		}
		if bootstrappedNow {
			bootstrapped = true
		}
		lastCIStatus = ciRun.Status

		// Routing after CIWatcher (spec §4.1): passed with nothing left
		// to fail, a quarantine set by Publisher, or budget exhaustion
		// all route to Scorer; everything else retries.
		switch {
		case ciRun.Status == model.CIPassed && failuresAfter == 0:
			break iterations
		case run.QuarantineReason != "":
			break iterations
		case run.Iteration >= run.MaxIterations:
			break iterations
		}

		run.Iteration++
	}

	run.Status = model.RunScoring
	return o.runScorer(ctx, run, lastCIStatus, zeroTestsOnFinal, quarantineReason)
}

func (o *Orchestrator) runScanner(ctx context.Context, run *model.Run, workDir string) error {
	start := time.Now()
	run.CurrentNode = NodeScanner
	o.checkpoint(ctx, run, NodeScanner, nil)

	if err := scanner.Acquire(run.RepoURL, workDir, run.BaseBranch, run.HealBranch); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	result, err := scanner.Scan(workDir)
	if err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	run.WorkDir = workDir
	run.Language = result.Language
	run.Framework = result.Framework
	run.TestFiles = result.TestFiles

	o.Metrics.NodeObserved(NodeScanner, time.Since(start))
	o.emit(run, model.EventNodeCompleted, NodeScanner, run.Iteration, "scan complete", map[string]any{
		"language": run.Language, "framework": run.Framework,
	})
	return nil
}

func (o *Orchestrator) runRunner(ctx context.Context, run *model.Run) (runner.Result, error) {
	start := time.Now()
	run.CurrentNode = NodeRunner
	o.checkpoint(ctx, run, NodeRunner, nil)

	result, err := runner.Run(ctx, run.WorkDir, run.Framework, run.Language)
	if err != nil {
		return runner.Result{}, fmt.Errorf("runner: %w", err)
	}
	run.Framework = result.Framework

	o.Metrics.NodeObserved(NodeRunner, time.Since(start))
	o.emit(run, model.EventNodeCompleted, NodeRunner, run.Iteration, "test run complete", map[string]any{
		"exit_code": result.ExitCode, "timed_out": result.TimedOut,
	})
	return result, nil
}

func (o *Orchestrator) runAnalyzer(ctx context.Context, run *model.Run, spec model.RunSpec, runResult runner.Result) ([]model.TestFailure, error) {
	start := time.Now()
	run.CurrentNode = NodeAnalyzer
	o.checkpoint(ctx, run, NodeAnalyzer, nil)

	failures := analyzer.Analyze(runResult.Output, run.Framework, run.Language, run.Iteration)
	if len(failures) == 0 && runResult.ExitCode != 0 && spec.UseCompletion {
		failures = analyzer.FallbackViaCompletion(ctx, o.Completion, spec.CompletionModel, runResult.Output, run.Framework, run.Language, run.Iteration)
	}
	run.Failures = append(run.Failures, failures...)

	o.Metrics.NodeObserved(NodeAnalyzer, time.Since(start))
	for _, f := range failures {
		o.emit(run, model.EventFailureFound, NodeAnalyzer, run.Iteration, f.TestName, map[string]any{"bug_type": string(f.BugType)})
	}
	return failures, nil
}

// runSynthesizer patches every failure in order and returns how many of
// this iteration's fixes landed (status applied).
func (o *Orchestrator) runSynthesizer(ctx context.Context, run *model.Run, failures []model.TestFailure) int {
	start := time.Now()
	run.CurrentNode = NodeSynthesizer
	o.checkpoint(ctx, run, NodeSynthesizer, nil)

	applied := 0
	for _, f := range failures {
		rec := o.Synth.Process(ctx, run.WorkDir, run.Language, f)
		rec.IterationApplied = run.Iteration
		rec.Fingerprint = fingerprint(rec)
		run.Fixes = append(run.Fixes, rec)

		o.Metrics.FixObserved(string(rec.BugType), string(rec.Status))
		o.emit(run, model.EventFixApplied, NodeSynthesizer, run.Iteration, rec.Description, map[string]any{
			"status": string(rec.Status), "bug_type": string(rec.BugType), "confidence": rec.Confidence,
			"original_snippet": rec.OriginalSnippet, "fixed_snippet": rec.FixedSnippet,
		})
		if rec.Status == model.FixApplied {
			applied++
		}
	}

	o.Metrics.NodeObserved(NodeSynthesizer, time.Since(start))
	return applied
}

func (o *Orchestrator) runPublisher(ctx context.Context, run *model.Run) (publisher.Result, error) {
	start := time.Now()
	run.CurrentNode = NodePublisher
	o.checkpoint(ctx, run, NodePublisher, nil)

	result, fixes, err := publisher.Publish(run.WorkDir, o.Remote, run.HealBranch, run, run.Fixes, run.Iteration)
	if err != nil {
		return publisher.Result{}, fmt.Errorf("publisher: %w", err)
	}
	run.Fixes = fixes

	outcome := "noop"
	switch {
	case result.Quarantined:
		outcome = "quarantined"
	case result.Pushed:
		outcome = "pushed"
	case result.Error != "":
		outcome = "failed"
	}
	o.Metrics.PushObserved(outcome)
	o.Metrics.NodeObserved(NodePublisher, time.Since(start))
	return result, nil
}

// runCIWatcher polls CI, then bootstraps a workflow file and polls again
// if the observed status is no_ci and bootstrap hasn't already fired
// this run. It returns
// whether bootstrap fired on this call so the caller can latch the flag.
func (o *Orchestrator) runCIWatcher(ctx context.Context, run *model.Run, commitSHA string, failuresBefore, failuresAfter int, bootstrapped bool) (model.CIRun, bool, error) {
	start := time.Now()
	run.CurrentNode = NodeCIWatcher
	o.checkpoint(ctx, run, NodeCIWatcher, nil)

	repoSlug := repoSlugFromURL(run.RepoURL)

	ciRun, fixes, err := o.Watcher.Watch(ctx, run, repoSlug, run.HealBranch, commitSHA, run.Iteration, failuresBefore, failuresAfter, run.Fixes, bootstrapped)
	if err != nil {
		return model.CIRun{}, false, fmt.Errorf("ciwatcher: %w", err)
	}
	run.Fixes = fixes
	o.Metrics.CIObserved(string(ciRun.Status))
	o.emit(run, model.EventCIObserved, NodeCIWatcher, run.Iteration, "", map[string]any{
		"status": string(ciRun.Status), "regressed": ciRun.Regressed,
	})

	firedBootstrap := false
	if ciRun.Status == model.CINoCI && !bootstrapped {
		if err := o.runBootstrap(ctx, run); err != nil {
			return model.CIRun{}, false, err
		}
		firedBootstrap = true

		ciRun, fixes, err = o.Watcher.Watch(ctx, run, repoSlug, run.HealBranch, commitSHA, run.Iteration, failuresBefore, failuresAfter, run.Fixes, true)
		if err != nil {
			return model.CIRun{}, firedBootstrap, fmt.Errorf("ciwatcher: %w", err)
		}
		run.Fixes = fixes
		o.Metrics.CIObserved(string(ciRun.Status))
		o.emit(run, model.EventCIObserved, NodeCIWatcher, run.Iteration, "", map[string]any{
			"status": string(ciRun.Status), "regressed": ciRun.Regressed,
		})
	}

	o.Metrics.NodeObserved(NodeCIWatcher, time.Since(start))
	return ciRun, firedBootstrap, nil
}

// runBootstrap commits and pushes a minimal CI workflow file for run's
// detected language, the one-shot step CIWatcher routes to when it
// observes a no_ci status.
func (o *Orchestrator) runBootstrap(ctx context.Context, run *model.Run) error {
	run.CurrentNode = NodeBootstrap
	o.checkpoint(ctx, run, NodeBootstrap, nil)

	path := filepath.Join(run.WorkDir, ciwatcher.WorkflowPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bootstrap: create workflow dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(ciwatcher.BootstrapWorkflow(run.Language)), 0o644); err != nil {
		return fmt.Errorf("bootstrap: write workflow file: %w", err)
	}
	if err := gitutil.EnsureIdentity(run.WorkDir); err != nil {
		return fmt.Errorf("bootstrap: ensure git identity: %w", err)
	}
	if _, err := gitutil.Commit(run.WorkDir, "[AI-AGENT] Add CI workflow"); err != nil {
		return fmt.Errorf("bootstrap: commit: %w", err)
	}
	if err := publisher.PushWithAuth(run.WorkDir, o.Remote, run.HealBranch); err != nil {
		return fmt.Errorf("bootstrap: push: %w", err)
	}

	o.emit(run, model.EventNodeCompleted, NodeBootstrap, run.Iteration, "ci workflow bootstrapped", nil)
	return nil
}

func (o *Orchestrator) runScorer(ctx context.Context, run *model.Run, lastCIStatus model.CIStatus, zeroTestsOnFinal bool, quarantineReason string) (scorer.Results, error) {
	run.CurrentNode = NodeScorer
	o.checkpoint(ctx, run, NodeScorer, nil)

	now := time.Now()
	run.EndedAt = &now

	results, _ := scorer.Build(run, lastCIStatus, zeroTestsOnFinal, quarantineReason)

	resultsPath, pdfBytes, pdfErr := scorer.Finalize(o.OutputsDir, results)
	if pdfErr != nil {
		o.Logger.Warn("report pdf generation failed; results.json is unaffected", zap.Error(pdfErr), zap.String("run_id", run.ID))
	} else if err := o.Journal.PutArtifact(ctx, run.ID, "report.pdf", pdfBytes); err != nil {
		o.Logger.Warn("failed to persist report.pdf to journal", zap.Error(err), zap.String("run_id", run.ID))
	}
	if resultsJSON, err := json.Marshal(results); err == nil {
		_ = o.Journal.PutArtifact(ctx, run.ID, "results.json", resultsJSON)
	}

	o.Metrics.RunFinished(results.FinalStatus, run.Elapsed())
	o.emit(run, model.EventRunComplete, NodeScorer, run.Iteration, "run complete", map[string]any{
		"final_status": results.FinalStatus, "score": results.Score.Total, "results_path": resultsPath,
	})
	o.Events.Close()
	return results, nil
}

// finalizeFailed marks run failed with reason err and emits the terminal
// event, matching §7's "unhandled exception in any node" handling: the
// run becomes FAILED and the error still propagates to the caller.
func (o *Orchestrator) finalizeFailed(ctx context.Context, run *model.Run, err error) (scorer.Results, error) {
	run.FailureReason = err.Error()
	now := time.Now()
	run.EndedAt = &now
	run.Status = model.RunFailed

	results, _ := scorer.Build(run, model.CIFailed, false, run.QuarantineReason)
	if resultsPath, _, pdfErr := scorer.Finalize(o.OutputsDir, results); pdfErr == nil {
		_ = resultsPath
	}
	o.Metrics.RunFinished(results.FinalStatus, run.Elapsed())
	o.emit(run, model.EventRunComplete, run.CurrentNode, run.Iteration, err.Error(), map[string]any{"final_status": results.FinalStatus})
	o.Events.Close()
	return results, err
}

func (o *Orchestrator) finalizeCancelled(ctx context.Context, run *model.Run, err error) (scorer.Results, error) {
	return o.finalizeFailed(ctx, run, fmt.Errorf("run cancelled: %w", err))
}

func (o *Orchestrator) finalizeCrashed(ctx context.Context, run *model.Run, err error) (scorer.Results, error) {
	return o.finalizeFailed(ctx, run, err)
}

// checkpoint writes a durable trace record for node's entry. A journal
// write failure is logged, not fatal — the run's correctness never
// depends on the trace, only its replayability.
func (o *Orchestrator) checkpoint(ctx context.Context, run *model.Run, node string, data map[string]any) {
	rec := journal.Record{
		RunID:     run.ID,
		Node:      node,
		Iteration: run.Iteration,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := o.Journal.Append(ctx, rec); err != nil {
		o.Logger.Warn("journal append failed", zap.Error(err), zap.String("run_id", run.ID), zap.String("node", node))
	}
}

// emit assigns the next sequence number and publishes ev to the run's
// live event stream.
func (o *Orchestrator) emit(run *model.Run, kind model.EventKind, node string, iteration int, message string, data map[string]any) {
	o.seq++
	o.Events.Publish(model.Event{
		Seq:       o.seq,
		RunID:     run.ID,
		Kind:      kind,
		Node:      node,
		Iteration: iteration,
		Message:   message,
		Data:      data,
	})
}

// repoSlugFromURL derives the "org/repo" slug a forge API expects from a
// repository URL in any of the shapes git accepts: https://host/org/repo(.git),
// git@host:org/repo.git, or a bare org/repo.
func repoSlugFromURL(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(repoURL), ".git")

	if u, err := url.Parse(trimmed); err == nil && u.Host != "" {
		return strings.Trim(u.Path, "/")
	}
	if i := strings.Index(trimmed, "@"); i >= 0 {
		if j := strings.Index(trimmed[i:], ":"); j >= 0 {
			return strings.Trim(trimmed[i+j+1:], "/")
		}
	}
	return strings.Trim(trimmed, "/")
}

// fingerprint gives each FixRecord a short, stable identity derived from
// what it changed, so a journal consumer can dedup the same fix recorded
// across a retry without comparing full patch bodies.
func fingerprint(rec model.FixRecord) string {
	h := sha256.Sum256([]byte(rec.FilePath + "|" + string(rec.BugType) + "|" + strconv.Itoa(rec.Line) + "|" + rec.Description))
	return hex.EncodeToString(h[:])[:16]
}

