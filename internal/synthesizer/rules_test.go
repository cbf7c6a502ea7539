package synthesizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgeline/healer/internal/model"
)

func TestApplyRuleImportAppendsToRequirements(t *testing.T) {
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "requirements.txt",
		RawOutput: `ModuleNotFoundError: No module named 'requests'`,
	}
	fix, ok := ApplyRule("", failure, "flask==2.0.0\n")
	if !ok {
		t.Fatal("expected rule to apply")
	}
	if !strings.Contains(fix.NewContent, "requests") {
		t.Errorf("expected requests to be appended, got %q", fix.NewContent)
	}
	if !strings.Contains(fix.Description, "requests") {
		t.Errorf("expected description to name the module, got %q", fix.Description)
	}
}

func TestApplyRuleImportNoOpWhenAlreadyPresent(t *testing.T) {
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "requirements.txt",
		RawOutput: `No module named "requests"`,
	}
	_, ok := ApplyRule("", failure, "requests==2.31.0\n")
	if ok {
		t.Error("expected no-op when the module is already declared")
	}
}

func TestApplyRuleImportUnparsableMessage(t *testing.T) {
	failure := model.TestFailure{BugType: model.BugImport, RawOutput: "some unrelated failure"}
	if _, ok := ApplyRule("", failure, ""); ok {
		t.Error("expected no rule match without a recognizable module name")
	}
}

func TestApplyRuleIndentationMixedTabs(t *testing.T) {
	content := "def f():\n\t    return 1\n"
	failure := model.TestFailure{BugType: model.BugIndentation, Line: 2, RawOutput: "TabError: inconsistent use of tabs and spaces"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected mixed-tab rule to apply")
	}
	if strings.Contains(fix.NewContent, "\t") {
		t.Errorf("expected tabs to be expanded, got %q", fix.NewContent)
	}
}

func TestApplyRuleIndentationUnexpectedIndent(t *testing.T) {
	content := "def f():\n    return 1\n        return 2\n"
	failure := model.TestFailure{BugType: model.BugIndentation, Line: 3, RawOutput: "IndentationError: unexpected indent"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected unexpected-indent rule to apply")
	}
	lines := strings.Split(fix.NewContent, "\n")
	if strings.HasPrefix(lines[2], "        ") {
		t.Errorf("expected line to be de-indented, got %q", lines[2])
	}
}

func TestApplyRuleIndentationExpectedBlock(t *testing.T) {
	content := "def f():\nreturn 1\n"
	failure := model.TestFailure{BugType: model.BugIndentation, Line: 2, RawOutput: "IndentationError: expected an indented block"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected expected-indented-block rule to apply")
	}
	lines := strings.Split(fix.NewContent, "\n")
	if !strings.HasPrefix(lines[1], "    ") {
		t.Errorf("expected line to be indented, got %q", lines[1])
	}
}

func TestApplyRuleSyntaxMissingColon(t *testing.T) {
	content := "def f()\n    return 1\n"
	failure := model.TestFailure{BugType: model.BugSyntax, Line: 1, RawOutput: "SyntaxError: expected ':'"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected missing-colon rule to apply")
	}
	lines := strings.Split(fix.NewContent, "\n")
	if !strings.HasSuffix(lines[0], ":") {
		t.Errorf("expected colon to be appended, got %q", lines[0])
	}
}

func TestApplyRuleSyntaxNotABlockOpener(t *testing.T) {
	content := "x = 1\n"
	failure := model.TestFailure{BugType: model.BugSyntax, Line: 1, RawOutput: "SyntaxError: expected ':'"}
	if _, ok := ApplyRule("", failure, content); ok {
		t.Error("expected no rule match on a non-block-opener line")
	}
}

func TestApplyRuleLintingTrailingWhitespace(t *testing.T) {
	content := "x = 1   \ny = 2\n"
	failure := model.TestFailure{BugType: model.BugLinting, Line: 1, RawOutput: "trailing whitespace"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected trailing-whitespace rule to apply")
	}
	lines := strings.Split(fix.NewContent, "\n")
	if lines[0] != "x = 1" {
		t.Errorf("expected trailing whitespace stripped, got %q", lines[0])
	}
}

func TestApplyRuleLogicHasNoRule(t *testing.T) {
	failure := model.TestFailure{BugType: model.BugLogic, Line: 1, RawOutput: "AssertionError: assert 1 == 2"}
	if _, ok := ApplyRule("", failure, "x = 1\n"); ok {
		t.Error("expected logic bugs to have no rule-based fixer")
	}
}

func TestApplyRuleOutOfRangeLineIsSafe(t *testing.T) {
	failure := model.TestFailure{BugType: model.BugLinting, Line: 999, RawOutput: "trailing whitespace"}
	if _, ok := ApplyRule("", failure, "x = 1\n"); ok {
		t.Error("expected no rule match for an out-of-range line")
	}
}

func TestApplyRuleImportAddsToPackageJSONDevDependencies(t *testing.T) {
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "package.json",
		RawOutput: `Cannot find module 'lodash'`,
	}
	fix, ok := ApplyRule("", failure, `{"name": "app", "version": "1.0.0"}`)
	if !ok {
		t.Fatal("expected package.json rule to apply")
	}
	if !strings.Contains(fix.NewContent, `"lodash": "latest"`) {
		t.Errorf("expected lodash added to devDependencies, got %q", fix.NewContent)
	}
}

func TestApplyRuleImportPackageJSONNoOpWhenAlreadyPresent(t *testing.T) {
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "package.json",
		RawOutput: `cannot find module "lodash"`,
	}
	content := `{"devDependencies": {"lodash": "^4.0.0"}}`
	if _, ok := ApplyRule("", failure, content); ok {
		t.Error("expected no-op when the dependency is already declared")
	}
}

func TestApplyRuleImportRewritesRelativeWhenLocalModuleExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "helpers.py"), []byte("def f():\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "main.py",
		Line:      1,
		RawOutput: `ModuleNotFoundError: No module named 'helpers'`,
	}
	fix, ok := ApplyRule(dir, failure, "import helpers\n")
	if !ok {
		t.Fatal("expected relative-import rule to apply")
	}
	if !strings.Contains(fix.NewContent, "from . import helpers") {
		t.Errorf("expected rewritten relative import, got %q", fix.NewContent)
	}
}

func TestApplyRuleImportNoRewriteWhenModuleNotLocal(t *testing.T) {
	dir := t.TempDir()
	failure := model.TestFailure{
		BugType:   model.BugImport,
		File:      "main.py",
		Line:      1,
		RawOutput: `ModuleNotFoundError: No module named 'numpy'`,
	}
	if _, ok := ApplyRule(dir, failure, "import numpy\n"); ok {
		t.Error("expected no rule match when the module isn't found in-repo")
	}
}

func TestApplyRuleSyntaxBalancesUnmatchedParens(t *testing.T) {
	content := "x = foo(1, 2\n"
	failure := model.TestFailure{BugType: model.BugSyntax, Line: 1, RawOutput: "SyntaxError: unexpected EOF while parsing"}
	fix, ok := ApplyRule("", failure, content)
	if !ok {
		t.Fatal("expected unmatched-paren rule to apply")
	}
	if strings.Count(fix.NewContent, "(") != strings.Count(fix.NewContent, ")") {
		t.Errorf("expected balanced parens, got %q", fix.NewContent)
	}
}
