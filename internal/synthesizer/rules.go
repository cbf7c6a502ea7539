// Package synthesizer generates candidate fixes for classified test
// failures: a rule-based fixer for well-known patterns first, falling
// back to a completion-service call when no rule matches.
package synthesizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/forgeline/healer/internal/model"
)

var missingModuleRE = []*regexp.Regexp{
	regexp.MustCompile(`(?i)No module named ['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?i)cannot find module ['"]([^'"]+)['"]`),
}

// extractMissingModule pulls the bare top-level module name out of a
// common import-failure message.
func extractMissingModule(errorMsg string) (string, bool) {
	for _, re := range missingModuleRE {
		if m := re.FindStringSubmatch(errorMsg); m != nil {
			name := strings.SplitN(strings.TrimSpace(m[1]), ".", 2)[0]
			return name, true
		}
	}
	return "", false
}

// fixImportViaRequirements appends a missing module to requirements.txt,
// the lowest-risk rule-based import fix: it never touches source, only
// declares the dependency the test run is missing.
func fixImportViaRequirements(content, missingModule string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		name := strings.ToLower(strings.SplitN(strings.TrimSpace(line), "==", 2)[0])
		if name == strings.ToLower(missingModule) {
			return content, false
		}
	}
	fixed := content
	if fixed != "" && !strings.HasSuffix(fixed, "\n") {
		fixed += "\n"
	}
	fixed += missingModule + "\n"
	return fixed, true
}

// fixIndentation mirrors the original's three indentation heuristics:
// expand mixed tab/space lines, de-indent on "unexpected indent", and
// indent on "expected an indented block".
func fixIndentation(lines []string, lineIdx int, reason string) ([]string, bool) {
	if lineIdx < 0 || lineIdx >= len(lines) {
		return lines, false
	}
	line := lines[lineIdx]
	indentEnd := len(line) - len(strings.TrimLeft(line, " \t"))
	indent := line[:indentEnd]

	if strings.Contains(indent, "\t") && strings.Contains(indent, " ") {
		lines[lineIdx] = strings.ReplaceAll(line, "\t", "    ")
		return lines, true
	}

	lowerReason := strings.ToLower(reason)
	if strings.Contains(lowerReason, "unexpected indent") {
		if len(indent) >= 4 {
			lines[lineIdx] = indent[4:] + strings.TrimLeft(line, " \t")
			return lines, true
		}
		return lines, false
	}
	if strings.Contains(lowerReason, "expected an indented block") {
		lines[lineIdx] = indent + "    " + strings.TrimLeft(line, " \t")
		return lines, true
	}
	return lines, false
}

var blockOpenerRE = regexp.MustCompile(`^\s*(def|class|if|elif|else|for|while|with|try|except|finally)\b`)

// fixMissingColon adds a trailing colon to a Python block-opener line
// that's missing one, the one syntax-error pattern safe enough to
// auto-fix without understanding the surrounding grammar.
func fixMissingColon(lines []string, lineIdx int, reason string) ([]string, bool) {
	if lineIdx < 0 || lineIdx >= len(lines) {
		return lines, false
	}
	if !strings.Contains(strings.ToLower(reason), "expected ':'") {
		return lines, false
	}
	line := lines[lineIdx]
	trimmed := strings.TrimRight(line, "\n\r")
	if strings.HasSuffix(trimmed, ":") {
		return lines, false
	}
	if !blockOpenerRE.MatchString(line) {
		return lines, false
	}
	lines[lineIdx] = trimmed + ":\n"
	return lines, true
}

// fixTrailingWhitespace strips trailing whitespace from one flagged
// line — the only linting fix safe to apply without a formatter.
func fixTrailingWhitespace(lines []string, lineIdx int, reason string) ([]string, bool) {
	if lineIdx < 0 || lineIdx >= len(lines) {
		return lines, false
	}
	if !strings.Contains(strings.ToLower(reason), "trailing whitespace") {
		return lines, false
	}
	lines[lineIdx] = strings.TrimRight(lines[lineIdx], " \t\r\n") + "\n"
	return lines, true
}

// fixImportViaPackageJSON adds a missing module to package.json's
// devDependencies, the JS/TS analogue of fixImportViaRequirements.
func fixImportViaPackageJSON(content, missingModule string) (string, bool) {
	var pkg map[string]any
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return "", false
	}
	deps, _ := pkg["devDependencies"].(map[string]any)
	if deps == nil {
		deps = map[string]any{}
	}
	if _, exists := deps[missingModule]; exists {
		return "", false
	}
	deps[missingModule] = "latest"
	pkg["devDependencies"] = deps

	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", false
	}
	return string(out) + "\n", true
}

// localModuleExists is a best-effort check for whether a missing import
// actually names an in-repo module rather than a third-party package,
// mirroring the original's sibling-file/package probe. relFilePath is
// the importing file's path relative to repoDir.
func localModuleExists(moduleName, repoDir, relFilePath string) bool {
	dir := filepath.Join(repoDir, filepath.Dir(relFilePath))
	candidates := []string{
		filepath.Join(dir, moduleName+".py"),
		filepath.Join(dir, moduleName, "__init__.py"),
		filepath.Join(repoDir, moduleName+".py"),
		filepath.Join(repoDir, moduleName, "__init__.py"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return true
		}
	}
	return false
}

var (
	importFromRE = `^(\s*)from\s+%s(\.[\w\.]+)?\s+import\s+(.+?)\s*$`
	importPlainRE = `^(\s*)import\s+%s(\.[\w\.]+)?(\s+as\s+\w+)?\s*$`
)

// fixImportRelative rewrites an absolute Python import of a module that
// actually lives alongside the importing file into a relative import,
// preferring the failure's reported line before scanning the rest of
// the file for the same pattern.
func fixImportRelative(lines []string, lineIdx int, moduleName string) ([]string, bool) {
	fromRE := regexp.MustCompile(strings.ReplaceAll(importFromRE, "%s", regexp.QuoteMeta(moduleName)))
	plainRE := regexp.MustCompile(strings.ReplaceAll(importPlainRE, "%s", regexp.QuoteMeta(moduleName)))

	order := make([]int, 0, len(lines))
	if lineIdx >= 0 && lineIdx < len(lines) {
		order = append(order, lineIdx)
	}
	for i := range lines {
		if i != lineIdx {
			order = append(order, i)
		}
	}

	for _, idx := range order {
		line := lines[idx]
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "from .") {
			continue
		}
		if m := fromRE.FindStringSubmatch(line); m != nil {
			indent, submodule, imported := m[1], m[2], m[3]
			lines[idx] = indent + "from ." + moduleName + submodule + " import " + imported + "\n"
			return lines, true
		}
		if m := plainRE.FindStringSubmatch(line); m != nil {
			indent, submodule, alias := m[1], m[2], m[3]
			lines[idx] = indent + "from . import " + moduleName + submodule + alias + "\n"
			return lines, true
		}
	}
	return lines, false
}

// fixUnmatchedParens appends the balancing close-parens a truncated
// expression is missing, the one unmatched-bracket pattern safe enough
// to guess at: a simple open/close count imbalance at end of file.
func fixUnmatchedParens(content string, reason string) (string, bool) {
	lowerReason := strings.ToLower(reason)
	if !strings.Contains(lowerReason, "unexpected eof") && !strings.Contains(lowerReason, "syntaxerror") {
		return content, false
	}
	open := strings.Count(content, "(") - strings.Count(content, ")")
	if open <= 0 {
		return content, false
	}
	fixed := content
	if fixed != "" && !strings.HasSuffix(fixed, "\n") {
		fixed += "\n"
	}
	fixed += strings.Repeat(")", open) + "\n"
	return fixed, true
}

// RuleFix is the result of a successful rule-based fixer: the full new
// file content and a human-readable description of what changed.
type RuleFix struct {
	NewContent  string
	Description string
}

// ApplyRule dispatches to the fixer registered for failure.BugType and
// returns (fix, true) on success, or (RuleFix{}, false) when no rule
// matches — the caller should fall back to the completion path. repoDir
// is the checked-out repository root, used only by the import rule's
// local-module probe.
func ApplyRule(repoDir string, failure model.TestFailure, fileContent string) (RuleFix, bool) {
	switch failure.BugType {
	case model.BugImport:
		module, ok := extractMissingModule(failure.RawOutput)
		if !ok {
			return RuleFix{}, false
		}
		switch strings.ToLower(filepath.Base(failure.File)) {
		case "requirements.txt":
			fixed, changed := fixImportViaRequirements(fileContent, module)
			if !changed {
				return RuleFix{}, false
			}
			return RuleFix{NewContent: fixed, Description: "add missing dependency " + module + " to requirements"}, true

		case "package.json":
			fixed, changed := fixImportViaPackageJSON(fileContent, module)
			if !changed {
				return RuleFix{}, false
			}
			return RuleFix{NewContent: fixed, Description: "add missing dependency " + module + " to package.json"}, true
		}

		if filepath.Ext(failure.File) != ".py" {
			return RuleFix{}, false
		}
		if !localModuleExists(module, repoDir, failure.File) {
			return RuleFix{}, false
		}
		lines := splitKeepEnds(fileContent)
		fixed, changed := fixImportRelative(lines, failure.Line-1, module)
		if !changed {
			return RuleFix{}, false
		}
		return RuleFix{NewContent: strings.Join(fixed, ""), Description: "rewrite absolute import of " + module + " to relative"}, true

	case model.BugIndentation:
		lines := splitKeepEnds(fileContent)
		fixed, changed := fixIndentation(lines, failure.Line-1, failure.RawOutput)
		if !changed {
			return RuleFix{}, false
		}
		return RuleFix{NewContent: strings.Join(fixed, ""), Description: "fix indentation at line " + strconv.Itoa(failure.Line)}, true

	case model.BugSyntax:
		lines := splitKeepEnds(fileContent)
		if fixed, changed := fixMissingColon(lines, failure.Line-1, failure.RawOutput); changed {
			return RuleFix{NewContent: strings.Join(fixed, ""), Description: "add missing colon at line " + strconv.Itoa(failure.Line)}, true
		}
		if fixed, changed := fixUnmatchedParens(fileContent, failure.RawOutput); changed {
			return RuleFix{NewContent: fixed, Description: "balance unmatched parentheses"}, true
		}
		return RuleFix{}, false

	case model.BugLinting:
		lines := splitKeepEnds(fileContent)
		fixed, changed := fixTrailingWhitespace(lines, failure.Line-1, failure.RawOutput)
		if !changed {
			return RuleFix{}, false
		}
		return RuleFix{NewContent: strings.Join(fixed, ""), Description: "strip trailing whitespace at line " + strconv.Itoa(failure.Line)}, true
	}
	return RuleFix{}, false
}

// splitKeepEnds splits content into lines, keeping the trailing newline
// on every line but the last (if any), matching Python's
// str.splitlines(keepends=True) closely enough for line-indexed edits.
func splitKeepEnds(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
