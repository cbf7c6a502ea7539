package model

import "testing"

func TestComputeScore(t *testing.T) {
	cases := []struct {
		name          string
		totalTimeSecs float64
		totalCommits  int
		totalFailures int
		fixesApplied  int
		testsPassed   bool
		wantTotal     float64
	}{
		{
			name:          "no failures, passed, fast",
			totalTimeSecs: 120,
			totalCommits:  3,
			totalFailures: 0,
			fixesApplied:  0,
			testsPassed:   true,
			wantTotal:     110,
		},
		{
			name:          "partial fix, still failing",
			totalTimeSecs: 400,
			totalCommits:  5,
			totalFailures: 4,
			fixesApplied:  2,
			testsPassed:   false,
			wantTotal:     50,
		},
		{
			name:          "partial fix, fast, still failing gets speed bonus",
			totalTimeSecs: 100,
			totalCommits:  5,
			totalFailures: 4,
			fixesApplied:  2,
			testsPassed:   false,
			wantTotal:     60,
		},
		{
			name:          "all fixed, passed, slow: no speed bonus",
			totalTimeSecs: 500,
			totalCommits:  5,
			totalFailures: 4,
			fixesApplied:  4,
			testsPassed:   true,
			wantTotal:     100,
		},
		{
			name:          "efficiency penalty caps score",
			totalTimeSecs: 100,
			totalCommits:  30,
			totalFailures: 1,
			fixesApplied:  1,
			testsPassed:   true,
			wantTotal:     90,
		},
		{
			name:          "zero failures and not passed never divides by zero",
			totalTimeSecs: 100,
			totalCommits:  1,
			totalFailures: 0,
			fixesApplied:  0,
			testsPassed:   false,
			wantTotal:     100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeScore(tc.totalTimeSecs, tc.totalCommits, tc.totalFailures, tc.fixesApplied, tc.testsPassed)
			if got.Total != tc.wantTotal {
				t.Errorf("Total = %v, want %v (breakdown: %+v)", got.Total, tc.wantTotal, got)
			}
		})
	}
}

func TestPublicCIStatus(t *testing.T) {
	if got := PublicCIStatus(CINoCI); got != "failed" {
		t.Errorf("no_ci should map to failed, got %q", got)
	}
	if got := PublicCIStatus(CIPassed); got != "passed" {
		t.Errorf("passed should pass through unchanged, got %q", got)
	}
}

func TestNonRolledBackFixCount(t *testing.T) {
	fixes := []FixRecord{
		{Status: FixApplied},
		{Status: FixRolledBack},
		{Status: FixFailed},
	}
	if got := NonRolledBackFixCount(fixes); got != 2 {
		t.Errorf("expected 2 non-rolled-back fixes, got %d", got)
	}
}

func TestNewRunIDMonotonicLength(t *testing.T) {
	id := NewRunID()
	if len(id) != 26 {
		t.Errorf("expected a 26-char ULID, got %q (%d chars)", id, len(id))
	}
}

func TestDeriveHealBranchSanitizesAndValidates(t *testing.T) {
	branch := DeriveHealBranch("rift organisers", "Saiyam Kumar")
	if branch != "RIFT_ORGANISERS_SAIYAM_KUMAR_AI_Fix" {
		t.Errorf("unexpected branch name: %q", branch)
	}
	if !IsValidHealBranch(branch) {
		t.Errorf("derived branch %q should satisfy the wire format", branch)
	}
}

func TestDeriveHealBranchHandlesEmptyComponents(t *testing.T) {
	branch := DeriveHealBranch("", "")
	if !IsValidHealBranch(branch) {
		t.Errorf("derived branch %q from empty names should still be valid", branch)
	}
}

func TestIsValidHealBranchRejectsLowercase(t *testing.T) {
	if IsValidHealBranch("team_leader_ai_fix") {
		t.Error("expected lowercase branch name to be rejected")
	}
}
