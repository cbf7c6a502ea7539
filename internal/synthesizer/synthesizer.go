package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/model"
)

// Result is a candidate fix for one failure, either rule-based or
// produced by a completion-service call.
type Result struct {
	NewContent  string
	Description string
	RuleBased   bool
}

// Synthesizer produces a Result for a classified failure, trying the
// rule-based fixers first and only calling out to a completion provider
// when no rule matches.
type Synthesizer struct {
	Completion *completion.Client
	Model      string
}

// New builds a Synthesizer. client may be nil, in which case only
// rule-based fixes are attempted.
func New(client *completion.Client, model string) *Synthesizer {
	return &Synthesizer{Completion: client, Model: model}
}

// contextWindow is how many lines of surrounding source are shown to the
// completion provider around the failing line.
const contextWindow = 10

// maxFileChars bounds how much of the file is sent in a completion
// prompt, matching the original's budget for keeping prompts small.
const maxFileChars = 3000

// Synthesize returns a candidate fix for failure against fileContent, or
// (Result{}, false) if neither a rule nor the completion fallback
// produced a usable change.
func (s *Synthesizer) Synthesize(ctx context.Context, repoDir string, failure model.TestFailure, fileContent, language string) (Result, bool) {
	if fix, ok := ApplyRule(repoDir, failure, fileContent); ok {
		return Result{NewContent: fix.NewContent, Description: fix.Description, RuleBased: true}, true
	}

	if s.Completion == nil {
		return Result{}, false
	}

	prompt := buildPrompt(failure, fileContent, language)
	resp, err := s.Completion.Complete(ctx, completion.Request{
		Model:       s.Model,
		Prompt:      prompt,
		System:      "You are an expert code fixer. Return ONLY the corrected full file content. Make minimal changes. Preserve formatting and style.",
		MaxTokens:   4096,
		Temperature: 0,
	})
	if err != nil {
		return Result{}, false
	}

	fixed := stripMarkdownFence(strings.TrimSpace(resp.Text))
	if fixed != "" && strings.HasSuffix(fileContent, "\n") {
		fixed += "\n"
	}
	if fixed == "" || fixed == fileContent {
		return Result{}, false
	}

	desc := fmt.Sprintf("completion fix for %s: %s", failure.BugType, truncate(failure.RawOutput, 100))
	return Result{NewContent: fixed, Description: desc, RuleBased: false}, true
}

// buildPrompt renders the failure, a window of context around the
// failing line, and a bounded prefix of the file into a single prompt.
func buildPrompt(failure model.TestFailure, fileContent, language string) string {
	lines := strings.Split(fileContent, "\n")
	start := failure.Line - 1 - contextWindow
	if start < 0 {
		start = 0
	}
	end := failure.Line + contextWindow
	if end > len(lines) {
		end = len(lines)
	}

	var ctxBuilder strings.Builder
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == failure.Line {
			marker = ">>>"
		}
		fmt.Fprintf(&ctxBuilder, "%s %d: %s\n", marker, i+1, lines[i])
	}

	body := fileContent
	if len(body) > maxFileChars {
		body = body[:maxFileChars]
	}

	return fmt.Sprintf(
		"Fix the following %s code error.\n\n"+
			"**Error**: %s\n**Bug type**: %s\n**File**: %s\n**Line**: %d\n\n"+
			"**Code context** (>>> marks the failing line):\n```\n%s```\n\n"+
			"**Full file** (first %d chars):\n```%s\n%s\n```\n\n"+
			"Return ONLY the complete fixed file content. No markdown fences, no explanation.",
		language, failure.RawOutput, failure.BugType, failure.File, failure.Line,
		ctxBuilder.String(), maxFileChars, language, body,
	)
}

// stripMarkdownFence removes a leading/trailing ``` fence a completion
// provider sometimes wraps its answer in despite being asked not to.
func stripMarkdownFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
