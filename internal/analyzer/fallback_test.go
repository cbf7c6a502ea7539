package analyzer

import (
	"context"
	"testing"

	"github.com/forgeline/healer/internal/completion"
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

func TestFallbackViaCompletionParsesJSONArray(t *testing.T) {
	adapter := &fakeAdapter{text: `[{"file": "main.py", "test_name": "test_x", "line": 4, "message": "AssertionError: boom"}]`}
	client := completion.NewClient()
	client.Register(adapter)

	failures := FallbackViaCompletion(context.Background(), client, "test-model", "garbled output", "pytest", "python", 1)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].File != "main.py" || failures[0].Line != 4 {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
	if failures[0].BugType == "" {
		t.Error("expected failure to be classified")
	}
}

func TestFallbackViaCompletionStripsCodeFence(t *testing.T) {
	adapter := &fakeAdapter{text: "```json\n[{\"test_name\": \"test_y\", \"message\": \"TypeError: bad\"}]\n```"}
	client := completion.NewClient()
	client.Register(adapter)

	failures := FallbackViaCompletion(context.Background(), client, "test-model", "garbled", "pytest", "python", 1)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
}

func TestFallbackViaCompletionDiscardsOnParseError(t *testing.T) {
	adapter := &fakeAdapter{text: "not json at all"}
	client := completion.NewClient()
	client.Register(adapter)

	failures := FallbackViaCompletion(context.Background(), client, "test-model", "garbled", "pytest", "python", 1)
	if failures != nil {
		t.Errorf("expected nil on parse failure, got %+v", failures)
	}
}

func TestFallbackViaCompletionReturnsNilWithoutClient(t *testing.T) {
	if got := FallbackViaCompletion(context.Background(), nil, "m", "out", "pytest", "python", 1); got != nil {
		t.Errorf("expected nil with no client, got %+v", got)
	}
}
