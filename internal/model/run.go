// Package model holds the data shapes shared across every stage of a
// repair run: the run record itself, the failures it discovered, the
// fixes it applied, CI observations, and the final score breakdown.
package model

import (
	"crypto/rand"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunScanning    RunStatus = "scanning"
	RunTesting     RunStatus = "testing"
	RunAnalyzing   RunStatus = "analyzing"
	RunFixing      RunStatus = "fixing"
	RunPublishing  RunStatus = "publishing"
	RunWatchingCI  RunStatus = "watching_ci"
	RunScoring     RunStatus = "scoring"
	RunPassed      RunStatus = "passed"
	RunFailed      RunStatus = "failed"
	RunQuarantined RunStatus = "quarantined"
)

// NewRunID mints a lexically sortable run identifier.
func NewRunID() string {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, rand.Reader)
	if err != nil {
		// rand.Reader failures are effectively unrecoverable; fall back to a
		// monotonic entropy source rather than panic.
		id, _ = ulid.New(ms, ulid.Monotonic(rand.Reader, 0))
	}
	return id.String()
}

// Run is the top-level record for one repair attempt against one repo.
type Run struct {
	ID         string    `yaml:"run_id" json:"run_id"`
	RepoURL    string    `yaml:"repo_url" json:"repo_url"`
	BaseBranch string    `yaml:"base_branch" json:"base_branch"`
	HealBranch string    `yaml:"heal_branch" json:"heal_branch"`
	TeamName   string    `yaml:"team_name,omitempty" json:"team_name,omitempty"`
	LeaderName string    `yaml:"leader_name,omitempty" json:"leader_name,omitempty"`
	Status     RunStatus `yaml:"status" json:"status"`

	MaxIterations int    `yaml:"max_iterations" json:"max_iterations"`
	Iteration     int    `yaml:"iteration" json:"iteration"`
	CurrentNode   string `yaml:"current_node,omitempty" json:"current_node,omitempty"`

	WorkDir   string `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	Language  string `yaml:"language,omitempty" json:"language,omitempty"`
	Framework string `yaml:"framework,omitempty" json:"framework,omitempty"`
	TestFiles []string `yaml:"test_files,omitempty" json:"test_files,omitempty"`

	StartedAt time.Time  `yaml:"started_at" json:"started_at"`
	EndedAt   *time.Time `yaml:"ended_at,omitempty" json:"ended_at,omitempty"`

	TotalCommits int `yaml:"total_commits" json:"total_commits"`

	Failures []TestFailure `yaml:"-" json:"-"`
	Fixes    []FixRecord   `yaml:"-" json:"-"`
	CIRuns   []CIRun       `yaml:"-" json:"-"`

	FailureReason    string `yaml:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	QuarantineReason string `yaml:"quarantine_reason,omitempty" json:"quarantine_reason,omitempty"`
}

// Elapsed returns wall-clock time since the run started, or since it ended
// if it has already finished.
func (r *Run) Elapsed() time.Duration {
	end := time.Now()
	if r.EndedAt != nil {
		end = *r.EndedAt
	}
	return end.Sub(r.StartedAt)
}

// BugType is one of the six classification buckets a TestFailure can fall
// into. LOGIC is the cascade's default when nothing more specific matches.
type BugType string

const (
	BugSyntax      BugType = "syntax"
	BugIndentation BugType = "indentation"
	BugImport      BugType = "import"
	BugTypeError   BugType = "type_error"
	BugLinting     BugType = "linting"
	BugLogic       BugType = "logic"
)

// TestFailure is one failing test discovered by the Runner and classified
// by the Analyzer.
type TestFailure struct {
	ID           string  `json:"id"`
	TestName     string  `json:"test_name"`
	File         string  `json:"file,omitempty"`
	Line         int     `json:"line,omitempty"`
	Language     string  `json:"language"`
	Framework    string  `json:"framework"`
	RawOutput    string  `json:"raw_output"`
	BugType      BugType `json:"bug_type,omitempty"`
	Description  string  `json:"description,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	IterationSeen int    `json:"iteration_seen"`
}

// FixStatus tracks a synthesized fix through its lifecycle.
type FixStatus string

const (
	FixProposed    FixStatus = "proposed"
	FixApplied     FixStatus = "applied"
	FixFailed      FixStatus = "failed"
	FixRolledBack  FixStatus = "rolled_back"
)

// FixRecord is one synthesized patch, from proposal through (optional)
// commit through (optional) rollback.
type FixRecord struct {
	ID              string    `json:"id"`
	FailureID       string    `json:"failure_id"`
	FilePath        string    `json:"file_path"`
	Line            int       `json:"line,omitempty"`
	BugType         BugType   `json:"bug_type"`
	Description     string    `json:"description"`
	Patch           string    `json:"patch"`
	OriginalSnippet string    `json:"original_snippet,omitempty"`
	FixedSnippet    string    `json:"fixed_snippet,omitempty"`
	Fingerprint     string    `json:"fingerprint"`
	Status          FixStatus `json:"status"`
	CommitSHA       string    `json:"commit_sha,omitempty"`
	CommitMessage   string    `json:"commit_message,omitempty"`
	IterationApplied int      `json:"iteration_applied"`
	Confidence      float64   `json:"confidence"`
	ModelIdentity   string    `json:"model_identity,omitempty"`
	RuleBased       bool      `json:"rule_based"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// FixSkipped marks a failure the Synthesizer deliberately declined
// to attempt (e.g. an IMPORT failure with no usable manifest target),
// distinct from FixFailed which means a patch attempt didn't land.
const FixSkipped FixStatus = "skipped"

// CIStatus is the internal CI lifecycle state. "no_ci" is an internal-only
// value; it is translated to "failed" in any externally visible artifact.
type CIStatus string

const (
	CIPending  CIStatus = "pending"
	CIRunning  CIStatus = "running"
	CIPassed   CIStatus = "passed"
	CIFailed   CIStatus = "failed"
	CINoCI     CIStatus = "no_ci"
)

// PublicCIStatus maps the internal no_ci sentinel to the externally
// visible status. Every other status passes through unchanged.
func PublicCIStatus(s CIStatus) string {
	if s == CINoCI {
		return string(CIFailed)
	}
	return string(s)
}

// CIRun is one observed CI workflow run tied to a pushed commit, one per
// iteration, append-only.
type CIRun struct {
	Iteration      int           `json:"iteration"`
	CommitSHA      string        `json:"commit_sha"`
	Status         CIStatus      `json:"status"`
	ForgeRunID     string        `json:"forge_run_id,omitempty"`
	WorkflowURL    string        `json:"workflow_url,omitempty"`
	FailuresBefore int           `json:"failures_before"`
	FailuresAfter  int           `json:"failures_after"`
	Regressed      bool          `json:"regressed"`
	RolledBack     bool          `json:"rolled_back"`
	RollbackSHA    string        `json:"rollback_sha,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	ObservedAt     time.Time     `json:"observed_at"`
}

// ScoreBreakdown is the final arithmetic behind a run's numeric score,
// matching the original implementation's scorer field-for-field.
type ScoreBreakdown struct {
	Base              float64 `json:"base"`
	SpeedBonus        float64 `json:"speed_bonus"`
	EfficiencyPenalty float64 `json:"efficiency_penalty"`
	Total             float64 `json:"total"`
}

// ComputeScore implements the original scorer.py formula exactly:
// base starts at 100; if there were any failures, base is scaled by the
// fraction that got fixed. If the final test run passed, base resets to
// 100 and a run under 300s earns a 10-point speed bonus; a run that did
// not pass earns the same bonus when it applied at least one fix in
// under 300s. A flat per-commit-over-20 efficiency penalty is always
// subtracted.
func ComputeScore(totalTimeSecs float64, totalCommits, totalFailures, fixesApplied int, testsPassed bool) ScoreBreakdown {
	base := 100.0
	if totalFailures > 0 {
		base = 100.0 * float64(fixesApplied) / float64(totalFailures)
	}

	var speedBonus float64
	if testsPassed {
		base = 100.0
		if totalTimeSecs < 300 {
			speedBonus = 10.0
		}
	} else if fixesApplied > 0 && totalTimeSecs < 300 {
		speedBonus = 10.0
	}

	efficiencyPenalty := 2.0 * math.Max(0, float64(totalCommits-20))

	total := math.Max(0, base+speedBonus-efficiencyPenalty)

	return ScoreBreakdown{
		Base:              base,
		SpeedBonus:        speedBonus,
		EfficiencyPenalty: efficiencyPenalty,
		Total:             total,
	}
}

// NonRolledBackFixCount returns the number of fixes whose status is not
// rolled_back, the total_failures figure the score formula uses when it
// is derived from a fix list: rolled_back fixes are bookkeeping, not
// unresolved failures.
func NonRolledBackFixCount(fixes []FixRecord) int {
	n := 0
	for _, f := range fixes {
		if f.Status != FixRolledBack {
			n++
		}
	}
	return n
}
