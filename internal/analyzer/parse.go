package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/forgeline/healer/internal/model"
)

var pytestFailureRE = regexp.MustCompile(`(?m)^(?:FAILED|ERROR)\s+([\w/\\.]+)::(\w+)(?:\s*-\s*(.+))?$`)
var pytestFileLineRE = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
var goTestFailureRE = regexp.MustCompile(`(?m)^--- FAIL:\s+(\S+)`)
var goTestLocRE = regexp.MustCompile(`(\S+\.go):(\d+):`)
var jestFailureRE = regexp.MustCompile(`(?m)●\s+(.+)`)
var jestLocRE = regexp.MustCompile(`at.*?[( ]([\w./\\-]+):(\d+):\d+`)
var genericLocRE = regexp.MustCompile(`([\w/.\\-]+\.(?:java|kt|scala|rb|php|ex|exs|hs|lua|pl|jl|groovy|swift|dart|c|cpp|cc|rs|go|py|js|ts))[:(](\d+)`)

// Analyze turns raw test-runner output into classified TestFailure
// records. It tries a framework-specific parser first; frameworks
// without a dedicated parser fall back to a generic line scan that looks
// for common failure markers.
func Analyze(output, framework, language string, iteration int) []model.TestFailure {
	var failures []model.TestFailure
	switch framework {
	case "pytest":
		failures = parsePytest(output)
	case "go-test":
		failures = parseGoTest(output)
	case "jest", "vitest", "mocha":
		failures = parseJest(output)
	default:
		failures = parseGeneric(output)
	}

	for i := range failures {
		failures[i].Language = language
		failures[i].Framework = framework
		failures[i].IterationSeen = iteration
		failures[i].BugType = Classify(failures[i].RawOutput)
		if failures[i].ID == "" {
			failures[i].ID = fmt.Sprintf("%s-%d", failures[i].TestName, i)
		}
		failures[i].Description = truncate(failures[i].Description, descriptionMaxChars)
		failures[i].RawOutput = truncate(failures[i].RawOutput, rawOutputMaxChars)
	}
	return failures
}

// descriptionMaxChars/rawOutputMaxChars bound how much of a failure's
// error message and raw output block are kept once classified.
const (
	descriptionMaxChars = 500
	rawOutputMaxChars   = 1000
)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// pytestTracebackWindow bounds how far back of a "FAILED path::test" summary
// line we'll search for that test's "File "...", line N" traceback entry.
const pytestTracebackWindow = 2000

func parsePytest(output string) []model.TestFailure {
	var out []model.TestFailure
	matches := pytestFailureRE.FindAllStringSubmatchIndex(output, -1)
	for i, m := range matches {
		// pytest prints each test's traceback (with its "File ..., line N"
		// entries) before that test's one-line summary in the "short test
		// summary info" block, so the window to search for a location scans
		// backwards from the summary line, not forwards.
		winStart := 0
		if i > 0 {
			winStart = matches[i-1][1]
		}
		if m[0]-winStart > pytestTracebackWindow {
			winStart = m[0] - pytestTracebackWindow
		}
		section := output[winStart:m[1]]

		loc := pytestFileLineRE.FindStringSubmatch(section)
		line := 1
		if loc != nil {
			line, _ = strconv.Atoi(loc[2])
		}

		out = append(out, model.TestFailure{
			TestName:    output[m[4]:m[5]],
			File:        output[m[2]:m[3]],
			Line:        line,
			RawOutput:   strings.TrimSpace(output[m[0]:m[1]]),
			Description: strings.TrimSpace(submatchOrEmpty(output, m, 3)),
		})
	}
	return out
}

func parseGoTest(output string) []model.TestFailure {
	var out []model.TestFailure
	matches := goTestFailureRE.FindAllStringSubmatchIndex(output, -1)
	for i, m := range matches {
		start := m[0]
		end := len(output)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := output[start:end]
		name := output[m[2]:m[3]]

		file, line := "", 1
		if loc := goTestLocRE.FindStringSubmatch(section); loc != nil {
			file = loc[1]
			line, _ = strconv.Atoi(loc[2])
		}

		out = append(out, model.TestFailure{
			TestName:  name,
			File:      file,
			Line:      line,
			RawOutput: strings.TrimSpace(section),
		})
	}
	return out
}

func parseJest(output string) []model.TestFailure {
	var out []model.TestFailure
	sections := jestFailureRE.Split(output, -1)
	matches := jestFailureRE.FindAllStringSubmatch(output, -1)
	for i, m := range matches {
		var body string
		if i+1 < len(sections) {
			body = sections[i+1]
		}

		file, line := "", 1
		if loc := jestLocRE.FindStringSubmatch(body); loc != nil {
			file = loc[1]
			line, _ = strconv.Atoi(loc[2])
		}

		out = append(out, model.TestFailure{
			TestName:  strings.TrimSpace(m[1]),
			File:      file,
			Line:      line,
			RawOutput: strings.TrimSpace(m[1] + "\n" + body),
		})
	}
	return out
}

// submatchOrEmpty returns the text of submatch group g from a
// FindAllStringSubmatchIndex match, or "" if the group didn't participate
// (indices -1,-1, as happens for pytestFailureRE's optional trailing group).
func submatchOrEmpty(s string, m []int, g int) string {
	lo, hi := m[2*g], m[2*g+1]
	if lo < 0 || hi < 0 {
		return ""
	}
	return s[lo:hi]
}

// parseGeneric is the fallback for every framework without a dedicated
// parser: it groups consecutive lines around any line containing a
// case-insensitive "fail" or "error" marker into one failure record.
func parseGeneric(output string) []model.TestFailure {
	var out []model.TestFailure
	lines := strings.Split(output, "\n")
	markerRE := regexp.MustCompile(`(?i)\bfail(ed|ure)?\b|\berror\b`)
	for i, line := range lines {
		if !markerRE.MatchString(line) {
			continue
		}
		start := i
		end := i + 1
		for end < len(lines) && end < i+6 && strings.TrimSpace(lines[end]) != "" {
			end++
		}
		section := strings.Join(lines[start:end], "\n")

		file, lineNum := "", 1
		if loc := genericLocRE.FindStringSubmatch(section); loc != nil {
			file = loc[1]
			lineNum, _ = strconv.Atoi(loc[2])
		}

		out = append(out, model.TestFailure{
			TestName:  strings.TrimSpace(line),
			File:      file,
			Line:      lineNum,
			RawOutput: section,
		})
	}
	return out
}
