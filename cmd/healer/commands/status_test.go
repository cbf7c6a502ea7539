package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRunStatusRendersServerSnapshot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/run-42" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(statusResponse{
			RunID:       "run-42",
			Status:      "running",
			CurrentNode: "runner",
			Iteration:   2,
		})
	}))
	defer ts.Close()

	cmd := NewStatusCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"run-42", "--server", ts.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run-42") || !strings.Contains(out, "runner") {
		t.Errorf("expected output to include run id and current node, got:\n%s", out)
	}
}

func TestRunStatusPropagatesServerErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	cmd := NewStatusCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"missing-run", "--server", ts.URL})

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for a 404 response")
	}
}
