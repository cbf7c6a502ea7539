package scorer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgeline/healer/internal/model"
)

func newRun() *model.Run {
	started := time.Now().Add(-10 * time.Second)
	return &model.Run{
		ID:         "01TESTRUNID",
		RepoURL:    "https://github.com/example/repo",
		HealBranch: "heal/01TESTRUNID",
		StartedAt:  started,
	}
}

func TestBuildPassedStatus(t *testing.T) {
	run := newRun()
	run.Fixes = []model.FixRecord{{BugType: model.BugImport, Status: model.FixApplied}}
	run.TotalCommits = 1

	results, breakdown := Build(run, model.CIPassed, false, "")
	if results.FinalStatus != string(model.RunPassed) {
		t.Errorf("expected passed, got %s", results.FinalStatus)
	}
	if breakdown.Base != 100 {
		t.Errorf("expected base reset to 100 on pass, got %v", breakdown.Base)
	}
}

func TestBuildQuarantinedStatus(t *testing.T) {
	run := newRun()
	results, _ := Build(run, model.CIFailed, false, "protected branch")
	if results.FinalStatus != string(model.RunQuarantined) {
		t.Errorf("expected quarantined, got %s", results.FinalStatus)
	}
}

func TestBuildFailedStatus(t *testing.T) {
	run := newRun()
	results, _ := Build(run, model.CIFailed, false, "")
	if results.FinalStatus != string(model.RunFailed) {
		t.Errorf("expected failed, got %s", results.FinalStatus)
	}
}

func TestBuildExcludesRolledBackFromTotalFailures(t *testing.T) {
	run := newRun()
	run.Fixes = []model.FixRecord{
		{Status: model.FixFailed},
		{Status: model.FixRolledBack},
	}
	results, _ := Build(run, model.CIFailed, false, "")
	if results.TotalFailures != 1 {
		t.Errorf("expected rolled_back fix excluded, got total_failures=%d", results.TotalFailures)
	}
}

func TestWriteResultsJSONCreatesFile(t *testing.T) {
	dir := t.TempDir()
	run := newRun()
	results, _ := Build(run, model.CIPassed, false, "")

	path, err := WriteResultsJSON(dir, results)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected results.json to exist: %v", err)
	}
	if filepath.Base(path) != "results.json" {
		t.Errorf("unexpected filename: %s", path)
	}
}

func TestGenerateReportPDFProducesValidHeader(t *testing.T) {
	run := newRun()
	results, _ := Build(run, model.CIPassed, false, "")
	pdf, err := GenerateReportPDF(results)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-1.4")) {
		t.Error("expected PDF header")
	}
	if !bytes.Contains(pdf, []byte("%%EOF")) {
		t.Error("expected PDF trailer EOF marker")
	}
}

func TestFinalizeReturnsResultsPathAndPDF(t *testing.T) {
	dir := t.TempDir()
	run := newRun()
	results, _ := Build(run, model.CIPassed, false, "")

	resultsPath, pdfBytes, pdfErr := Finalize(dir, results)
	if resultsPath == "" {
		t.Fatal("expected results.json path to be returned")
	}
	if pdfErr != nil {
		t.Fatalf("unexpected pdf error: %v", pdfErr)
	}
	if len(pdfBytes) == 0 {
		t.Error("expected non-empty pdf bytes")
	}
}
