package analyzer

import (
	"testing"

	"github.com/forgeline/healer/internal/model"
)

func TestClassifyCascadeOrder(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want model.BugType
	}{
		{"python syntax", "SyntaxError: invalid syntax", model.BugSyntax},
		{"python indentation still syntax first", "IndentationError: unexpected indent", model.BugSyntax},
		{"go import", "package foo is not in GOROOT", model.BugImport},
		{"typescript type error", "error TS2322: Type 'string' is not assignable to type 'number'", model.BugTypeError},
		{"eslint", "eslint: trailing whitespace", model.BugLinting},
		{"assertion", "AssertionError: assert 1 == 2", model.BugLogic},
		{"unmatched defaults to logic", "the process exited with an unexpected condition", model.BugLogic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.msg); got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.msg, got, tc.want)
			}
		})
	}
}

func TestAnalyzePytestOutput(t *testing.T) {
	output := "FAILED tests/test_app.py::test_adds - AssertionError: assert 1 == 2\n"
	failures := Analyze(output, "pytest", "python", 1)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	f := failures[0]
	if f.TestName != "test_adds" || f.File != "tests/test_app.py" {
		t.Errorf("unexpected parse: %+v", f)
	}
	if f.BugType != model.BugLogic {
		t.Errorf("expected BugLogic, got %v", f.BugType)
	}
	if f.Line != 1 {
		t.Errorf("expected Line to default to 1 absent a traceback, got %d", f.Line)
	}
}

func TestAnalyzePytestOutputExtractsLineFromTraceback(t *testing.T) {
	output := "________ test_adds ________\n" +
		"    def test_adds():\n" +
		">       assert 1 == 2\n" +
		"E       assert 1 == 2\n\n" +
		"File \"tests/test_app.py\", line 42\n" +
		"FAILED tests/test_app.py::test_adds - AssertionError: assert 1 == 2\n"
	failures := Analyze(output, "pytest", "python", 1)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Line != 42 {
		t.Errorf("expected line 42 from traceback, got %d", failures[0].Line)
	}
}

func TestAnalyzeGoTestOutput(t *testing.T) {
	output := "--- FAIL: TestAdd (0.00s)\n    add_test.go:10: assertion failed\nFAIL\n"
	failures := Analyze(output, "go-test", "go", 2)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].TestName != "TestAdd" {
		t.Errorf("expected TestAdd, got %s", failures[0].TestName)
	}
	if failures[0].IterationSeen != 2 {
		t.Errorf("expected iteration 2, got %d", failures[0].IterationSeen)
	}
	if failures[0].File != "add_test.go" || failures[0].Line != 10 {
		t.Errorf("expected add_test.go:10, got %s:%d", failures[0].File, failures[0].Line)
	}
}

func TestAnalyzeGenericFallback(t *testing.T) {
	output := "running suite\nFAIL some_spec\n  detail line\n\nOK\n"
	failures := Analyze(output, "busted", "lua", 1)
	if len(failures) == 0 {
		t.Fatal("expected at least one generic failure to be extracted")
	}
}
