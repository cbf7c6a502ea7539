// Package analyzer classifies raw test-runner output into one of six bug
// types and extracts individual TestFailure records from it.
package analyzer

import (
	"regexp"

	"github.com/forgeline/healer/internal/model"
)

type bugPattern struct {
	re   *regexp.Regexp
	bug  model.BugType
}

// bugPatterns is checked in order; the first match wins. The order is
// load-bearing: SYNTAX is checked before INDENTATION even though
// IndentationError would also match INDENTATION, because the original
// classifier's pattern list puts SYNTAX first.
var bugPatterns = []bugPattern{
	{regexp.MustCompile(`(?i)SyntaxError|IndentationError|TabError` +
		`|error CS\d+|error TS1\d{3}\b` +
		`|ParseError|parse error` +
		`|expected.*\btoken\b|unexpected token` +
		`|syntax error|SyntaxException` +
		`|error\[E\d+\].*expected` +
		`|\.go:\d+:\d+:.*expected` +
		`|error:.*expected.*;|missing semicolon`), model.BugSyntax},

	{regexp.MustCompile(`(?i)IndentationError|unexpected indent|expected an indented block` +
		`|inconsistent use of tabs and spaces`), model.BugIndentation},

	{regexp.MustCompile(`(?i)ImportError|ModuleNotFoundError|No module named` +
		`|cannot find module|Cannot find module` +
		`|unresolved import|cannot find type` +
		`|missing.*reference|CS0246` +
		`|package .* is not in GOROOT` +
		`|error\[E0432\]|error\[E0433\]` +
		`|no required module provides` +
		`|LoadError|require.*cannot load such file` +
		`|Class .* not found|Fatal error.*not found` +
		`|UndefinedFunctionError|module .* is not available` +
		`|Could not resolve` +
		`|error: package .* does not exist` +
		`|import .* could not be resolved`), model.BugImport},

	{regexp.MustCompile(`(?i)TypeError|type.?error|expected.*got|incompatible type` +
		`|CS0029|CS1503|cannot.?convert` +
		`|error TS\d+:.*Type .* is not assignable` +
		`|type mismatch|expected type` +
		`|error\[E0308\]` +
		`|cannot use .* as type` +
		`|incompatible types|found.*required` +
		`|Argument .* must be of type`), model.BugTypeError},

	{regexp.MustCompile(`(?i)flake8|pylint|eslint|E\d{3}|W\d{3}` +
		`|trailing whitespace|line too long` +
		`|CS8600|nullable` +
		`|clippy|warning\[.*\]` +
		`|golint|staticcheck|go vet` +
		`|rubocop|standardrb` +
		`|phpcs|psalm|phpstan` +
		`|credo|dialyzer` +
		`|hlint` +
		`|dart analyze|analysis_options` +
		`|checkstyle|spotbugs|PMD` +
		`|ktlint|detekt`), model.BugLinting},

	{regexp.MustCompile(`(?i)AssertionError|assert\s|Expected.*received|to equal|toBe|not equal` +
		`|Assert\.Equal|Assert\.True|Xunit|NUnit|MSTest` +
		`|FAIL.*Test|test.*failed` +
		`|panicked at|assertion failed` +
		`|FAIL:.*Test|--- FAIL:` +
		`|Failure/Error:|expected.*to\b|RSpec` +
		`|PHPUnit.*Failed|Failed asserting` +
		`|Assertion.*failed|ExUnit` +
		`|assertEqual|assertRaises`), model.BugLogic},
}

// Classify returns the bug type for a single failure's error text,
// cascading through bugPatterns and defaulting to BugLogic when nothing
// matches (the catch-all, matching the original's behavior).
func Classify(errorMsg string) model.BugType {
	for _, p := range bugPatterns {
		if p.re.MatchString(errorMsg) {
			return p.bug
		}
	}
	return model.BugLogic
}
