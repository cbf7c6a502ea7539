// Package scorer finalizes a run: determines its final status, computes
// its score breakdown, and builds the results.json artifact plus a
// best-effort PDF report.
package scorer

import (
	"time"

	"github.com/forgeline/healer/internal/model"
)

// Results is the externally visible summary of a completed run, written
// as results.json and handed to the journal and event bus on completion.
type Results struct {
	RunID            string          `json:"run_id"`
	RepoURL          string          `json:"repo_url"`
	TeamName         string          `json:"team_name,omitempty"`
	HealBranch       string          `json:"branch_name"`
	FinalStatus      string          `json:"final_status"`
	QuarantineReason string          `json:"quarantine_reason,omitempty"`
	TotalFailures   int              `json:"total_failures"`
	TotalFixes      int              `json:"total_fixes"`
	TotalTimeSecs   float64          `json:"total_time_secs"`
	Score           model.ScoreBreakdown `json:"score"`
	Fixes           []ResultFix      `json:"fixes"`
	CILog           []ResultCIRun    `json:"ci_log"`
}

// ResultFix is one FixRecord as it appears in results.json.
type ResultFix struct {
	File          string `json:"file"`
	BugType       string `json:"bug_type"`
	Line          int    `json:"line_number"`
	CommitMessage string `json:"commit_message"`
	Status        string `json:"status"`
}

// ResultCIRun is one CIRun as it appears in results.json, with the
// internal no_ci status mapped to its public-safe value.
type ResultCIRun struct {
	Iteration  int       `json:"iteration"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Regression bool      `json:"regression"`
}

// finalStatus applies spec's rule: passed if CI passed or there were no
// tests to fail on the final iteration, else quarantined if a quarantine
// reason is present, else failed.
func finalStatus(ciStatus model.CIStatus, testsRanAndPassed bool, quarantineReason string) model.RunStatus {
	if ciStatus == model.CIPassed || testsRanAndPassed {
		return model.RunPassed
	}
	if quarantineReason != "" {
		return model.RunQuarantined
	}
	return model.RunFailed
}

// Build computes the final status and score for run and assembles the
// results.json payload. lastCIStatus and zeroTestsOnFinalIteration come
// from the orchestrator's last observed CIWatcher/Runner state;
// quarantineReason is empty unless a quarantine condition fired.
func Build(run *model.Run, lastCIStatus model.CIStatus, zeroTestsOnFinalIteration bool, quarantineReason string) (Results, model.ScoreBreakdown) {
	status := finalStatus(lastCIStatus, zeroTestsOnFinalIteration, quarantineReason)
	run.Status = status

	totalTime := run.Elapsed().Seconds()
	totalFailures := model.NonRolledBackFixCount(run.Fixes)
	totalApplied := 0
	for _, f := range run.Fixes {
		if f.Status == model.FixApplied {
			totalApplied++
		}
	}

	breakdown := model.ComputeScore(totalTime, run.TotalCommits, totalFailures, totalApplied, status == model.RunPassed)

	fixes := make([]ResultFix, 0, len(run.Fixes))
	for _, f := range run.Fixes {
		resultStatus := "FAILED"
		if f.Status == model.FixApplied {
			resultStatus = "FIXED"
		}
		msg := f.CommitMessage
		if msg == "" {
			msg = "[AI-AGENT] Fix " + string(f.BugType)
		}
		fixes = append(fixes, ResultFix{
			File:          f.FilePath,
			BugType:       string(f.BugType),
			Line:          f.Line,
			CommitMessage: msg,
			Status:        resultStatus,
		})
	}

	ciLog := make([]ResultCIRun, 0, len(run.CIRuns))
	for _, cr := range run.CIRuns {
		ciLog = append(ciLog, ResultCIRun{
			Iteration:  cr.Iteration,
			Status:     model.PublicCIStatus(cr.Status),
			Timestamp:  cr.ObservedAt,
			Regression: cr.Regressed,
		})
	}

	results := Results{
		RunID:            run.ID,
		RepoURL:          run.RepoURL,
		TeamName:         run.TeamName,
		HealBranch:       run.HealBranch,
		FinalStatus:      string(status),
		QuarantineReason: quarantineReason,
		TotalFailures: totalFailures,
		TotalFixes:    totalApplied,
		TotalTimeSecs: round2(totalTime),
		Score:         breakdown,
		Fixes:         fixes,
		CILog:         ciLog,
	}
	return results, breakdown
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
