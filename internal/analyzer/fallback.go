package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/model"
)

// rawFailure is the strict JSON shape requested from the completion
// service when no framework parser could extract any failure from a
// failing run's output.
type rawFailure struct {
	File     string `json:"file"`
	TestName string `json:"test_name"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// FallbackViaCompletion asks the completion service to extract failures
// from output none of the rule-based parsers could handle. Used only
// when the rule path returned zero failures for a suite that still
// failed. A malformed or empty response is discarded, not retried — a
// flaky extraction isn't worth spending another iteration on.
func FallbackViaCompletion(ctx context.Context, client *completion.Client, modelName, output, framework, language string, iteration int) []model.TestFailure {
	if client == nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"The following %s test output could not be parsed by any known framework format.\n"+
			"Extract every distinct test failure as a JSON array, each element shaped exactly as:\n"+
			`{"file": "...", "test_name": "...", "line": 0, "message": "..."}`+"\n"+
			"Return ONLY the JSON array. No markdown fences, no explanation.\n\n"+
			"Output:\n```\n%s\n```",
		framework, truncate(output, rawOutputMaxChars*4),
	)

	resp, err := client.Complete(ctx, completion.Request{
		Model:       modelName,
		Prompt:      prompt,
		System:      "You extract structured test failures from raw test runner output. Respond with strict JSON only.",
		MaxTokens:   2048,
		Temperature: 0,
	})
	if err != nil {
		return nil
	}

	var raws []rawFailure
	if err := json.Unmarshal([]byte(stripFence(strings.TrimSpace(resp.Text))), &raws); err != nil {
		return nil
	}

	failures := make([]model.TestFailure, 0, len(raws))
	for i, rf := range raws {
		if rf.TestName == "" && rf.Message == "" {
			continue
		}
		tf := model.TestFailure{
			ID:            fmt.Sprintf("%s-completion-%d", rf.TestName, i),
			TestName:      rf.TestName,
			File:          rf.File,
			Line:          rf.Line,
			Language:      language,
			Framework:     framework,
			RawOutput:     truncate(rf.Message, rawOutputMaxChars),
			Description:   truncate(rf.Message, descriptionMaxChars),
			IterationSeen: iteration,
		}
		tf.BugType = Classify(tf.RawOutput)
		failures = append(failures, tf)
	}
	return failures
}

// stripFence removes a leading/trailing ``` fence a completion provider
// sometimes wraps its answer in despite being told not to.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
