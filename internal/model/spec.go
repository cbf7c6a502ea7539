package model

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunSpec is the declarative, user-supplied description of a repair run.
// It is validated against a JSON Schema (internal/config) before a clone
// is ever attempted.
type RunSpec struct {
	RunID         string `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	RepoURL       string `yaml:"repo_url" json:"repo_url"`
	BaseBranch    string `yaml:"base_branch,omitempty" json:"base_branch,omitempty"`
	TeamName      string `yaml:"team_name,omitempty" json:"team_name,omitempty"`
	LeaderName    string `yaml:"leader_name,omitempty" json:"leader_name,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	TimeBudgetSec int    `yaml:"time_budget_secs,omitempty" json:"time_budget_secs,omitempty"`

	UseCompletion   bool   `yaml:"use_completion,omitempty" json:"use_completion,omitempty"`
	CompletionModel string `yaml:"completion_model,omitempty" json:"completion_model,omitempty"`
}

// healBranchRE is the wire format a healing branch name must satisfy
// (spec's Run.healing branch name attribute).
var healBranchRE = regexp.MustCompile(`^[A-Z0-9_]+_[A-Z0-9_]+_AI_Fix$`)

var branchComponentInvalidRE = regexp.MustCompile(`[^A-Z0-9_]+`)

// sanitizeBranchComponent upper-cases name and collapses every run of
// characters outside [A-Z0-9_] into a single underscore, so team/leader
// names with spaces or punctuation still produce a valid branch
// component.
func sanitizeBranchComponent(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	cleaned := branchComponentInvalidRE.ReplaceAllString(upper, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		cleaned = "ANON"
	}
	return cleaned
}

// DeriveHealBranch builds a branch name satisfying healBranchRE from a
// run's team and leader names, the way the run-start endpoint derives
// branch_name from team_name/leader_name rather than accepting it as
// client input.
func DeriveHealBranch(teamName, leaderName string) string {
	return sanitizeBranchComponent(teamName) + "_" + sanitizeBranchComponent(leaderName) + "_AI_Fix"
}

// IsValidHealBranch reports whether branch satisfies the wire format
// required of a healing branch name.
func IsValidHealBranch(branch string) bool {
	return healBranchRE.MatchString(branch)
}

const (
	DefaultMaxIterations = 10
	DefaultTimeBudgetSec = 1800
)

// ApplyDefaults fills in zero-valued optional fields, mirroring the
// engine's own applyDefaults shape for RunOptions.
func (s RunSpec) ApplyDefaults() RunSpec {
	if s.BaseBranch == "" {
		s.BaseBranch = "main"
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.TimeBudgetSec <= 0 {
		s.TimeBudgetSec = DefaultTimeBudgetSec
	}
	return s
}

// MarshalManifest renders the spec as the YAML snapshot written alongside
// a run's worktree, the way the teacher persists its run manifest.
func (s RunSpec) MarshalManifest() ([]byte, error) {
	return yaml.Marshal(s)
}

// EventKind enumerates the live event-stream event types (spec.md §8).
type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventNodeEntered    EventKind = "node_entered"
	EventNodeCompleted  EventKind = "node_completed"
	EventFailureFound   EventKind = "failure_found"
	EventFixApplied     EventKind = "fix_applied"
	EventFixRolledBack  EventKind = "fix_rolled_back"
	EventPushed         EventKind = "pushed"
	EventCIObserved     EventKind = "ci_observed"
	EventIterationStart EventKind = "iteration_started"
	EventRunComplete    EventKind = "run_complete"
)

// Event is one entry in a run's live event stream, fanned out by
// internal/eventbus and replayed on subscribe.
type Event struct {
	Seq       int64          `json:"seq"`
	RunID     string         `json:"run_id"`
	Kind      EventKind      `json:"kind"`
	Node      string         `json:"node,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
