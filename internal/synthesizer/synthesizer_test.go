package synthesizer

import (
	"context"
	"testing"

	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/model"
)

type fakeAdapter struct {
	text string
	err  error
}

func (f *fakeAdapter) Name() string { return "fake" }
func (f *fakeAdapter) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	if f.err != nil {
		return completion.Response{}, f.err
	}
	return completion.Response{Text: f.text}, nil
}

func TestSynthesizePrefersRuleOverCompletion(t *testing.T) {
	adapter := &fakeAdapter{text: "should not be used"}
	client := completion.NewClient()
	client.Register(adapter)
	s := New(client, "test-model")

	failure := model.TestFailure{BugType: model.BugLinting, Line: 1, RawOutput: "trailing whitespace"}
	res, ok := s.Synthesize(context.Background(), "", failure, "x = 1   \n", "python")
	if !ok {
		t.Fatal("expected a rule-based fix")
	}
	if !res.RuleBased {
		t.Error("expected RuleBased=true when a rule matches")
	}
}

func TestSynthesizeFallsBackToCompletion(t *testing.T) {
	adapter := &fakeAdapter{text: "def f():\n    return 2\n"}
	client := completion.NewClient()
	client.Register(adapter)
	s := New(client, "test-model")

	failure := model.TestFailure{BugType: model.BugLogic, Line: 2, RawOutput: "AssertionError: assert 1 == 2"}
	res, ok := s.Synthesize(context.Background(), "", failure, "def f():\n    return 1\n", "python")
	if !ok {
		t.Fatal("expected completion fallback to produce a fix")
	}
	if res.RuleBased {
		t.Error("expected RuleBased=false for a completion-sourced fix")
	}
	if res.NewContent != adapter.text {
		t.Errorf("got %q, want %q", res.NewContent, adapter.text)
	}
}

func TestSynthesizeNoCompletionConfigured(t *testing.T) {
	s := New(nil, "")
	failure := model.TestFailure{BugType: model.BugLogic, Line: 2, RawOutput: "AssertionError"}
	if _, ok := s.Synthesize(context.Background(), "", failure, "x = 1\n", "python"); ok {
		t.Error("expected no fix when there is no rule and no completion client")
	}
}

func TestSynthesizeCompletionReturnsUnchangedContent(t *testing.T) {
	adapter := &fakeAdapter{text: "x = 1\n"}
	client := completion.NewClient()
	client.Register(adapter)
	s := New(client, "test-model")

	failure := model.TestFailure{BugType: model.BugLogic, Line: 1, RawOutput: "AssertionError"}
	if _, ok := s.Synthesize(context.Background(), "", failure, "x = 1\n", "python"); ok {
		t.Error("expected no usable fix when the completion echoes the input unchanged")
	}
}

func TestStripMarkdownFence(t *testing.T) {
	in := "```python\nx = 1\n```"
	want := "x = 1"
	if got := stripMarkdownFence(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
