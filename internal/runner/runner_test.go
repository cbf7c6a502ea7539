package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCommandForKnownAndFallback(t *testing.T) {
	if got := commandFor("go-test"); got[0] != "go" {
		t.Errorf("expected go command, got %v", got)
	}
	if got := commandFor("totally-unknown-framework"); got[0] != "python" {
		t.Errorf("expected pytest fallback, got %v", got)
	}
}

func TestRunCmdCapturesExitCodeAndOutput(t *testing.T) {
	dir := t.TempDir()
	out, code, timedOut := runCmd(context.Background(), []string{"sh", "-c", "echo hi; exit 3"}, dir, 5*time.Second)
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if timedOut {
		t.Error("did not expect timeout")
	}
	if out != "hi\n" {
		t.Errorf("expected captured output %q, got %q", "hi\n", out)
	}
}

func TestRunCmdTimesOut(t *testing.T) {
	dir := t.TempDir()
	_, code, timedOut := runCmd(context.Background(), []string{"sleep", "5"}, dir, 50*time.Millisecond)
	if !timedOut {
		t.Error("expected timeout to be reported")
	}
	if code != 1 {
		t.Errorf("expected code 1 on timeout, got %d", code)
	}
}

func TestRunCmdMissingBinary(t *testing.T) {
	dir := t.TempDir()
	_, code, _ := runCmd(context.Background(), []string{"definitely-not-a-real-binary-xyz"}, dir, 5*time.Second)
	if code != 127 {
		t.Errorf("expected 127 for missing binary, got %d", code)
	}
}

func TestResolveJSFrameworkFromPackageJSON(t *testing.T) {
	dir := t.TempDir()
	pkg := `{"devDependencies": {"vitest": "^1.0.0"}}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := resolveJSFramework(dir); got != "vitest" {
		t.Errorf("expected vitest, got %s", got)
	}
}

func TestHasPythonTestFiles(t *testing.T) {
	dir := t.TempDir()
	if hasPythonTestFiles(dir) {
		t.Fatal("expected false for empty dir")
	}
	if err := os.WriteFile(filepath.Join(dir, "test_app.py"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if !hasPythonTestFiles(dir) {
		t.Fatal("expected true once a test_*.py file exists")
	}
}
