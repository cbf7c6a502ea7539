package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forgeline/healer/internal/eventbus"
	"github.com/forgeline/healer/internal/model"
	"github.com/forgeline/healer/internal/scorer"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Config{Addr: ":0"}, Deps{}, zap.NewNop())
	ts := httptest.NewServer(srv.httpSrv.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
	})
	return srv, ts
}

func registerTestRun(t *testing.T, srv *Server, runID string) (*RunState, *eventbus.Broadcaster) {
	t.Helper()
	b := eventbus.NewBroadcaster()
	_, cancel := context.WithCancel(context.Background())
	rs := &RunState{RunID: runID, Broadcaster: b, Cancel: cancel, StartedAt: time.Now()}
	if err := srv.registry.Register(runID, rs); err != nil {
		t.Fatalf("register run: %v", err)
	}
	return rs, b
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/runs/does-not-exist")
	if err != nil {
		t.Fatalf("GET /runs/x: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunStatusReflectsLatestEventBeforeCompletion(t *testing.T) {
	srv, ts := newTestServer(t)
	rs, b := registerTestRun(t, srv, "run-1")
	b.Publish(model.Event{RunID: "run-1", Node: "scanner", Iteration: 1})
	b.Publish(model.Event{RunID: "run-1", Node: "runner", Iteration: 1})

	resp, err := http.Get(ts.URL + "/runs/run-1")
	if err != nil {
		t.Fatalf("GET /runs/run-1: %v", err)
	}
	defer resp.Body.Close()

	var status RunStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.CurrentNode != "runner" {
		t.Errorf("expected current_node runner, got %q", status.CurrentNode)
	}
	if status.Status != "running" {
		t.Errorf("expected status running, got %q", status.Status)
	}
	_ = rs
}

func TestRunStatusReflectsTerminalResult(t *testing.T) {
	srv, ts := newTestServer(t)
	rs, _ := registerTestRun(t, srv, "run-2")

	results := scorer.Results{RunID: "run-2", FinalStatus: string(model.RunPassed)}
	rs.SetResult(results, nil)

	resp, err := http.Get(ts.URL + "/runs/run-2")
	if err != nil {
		t.Fatalf("GET /runs/run-2: %v", err)
	}
	defer resp.Body.Close()

	var status RunStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != results.FinalStatus {
		t.Errorf("expected status %q, got %q", results.FinalStatus, status.Status)
	}
}

func TestRunEventsStreamsHistory(t *testing.T) {
	srv, ts := newTestServer(t)
	_, b := registerTestRun(t, srv, "run-3")
	b.Publish(model.Event{RunID: "run-3", Kind: model.EventRunStarted, Seq: 1})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/runs/run-3/events", nil)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() {
		t.Fatal("expected at least one SSE line")
	}
	line := scanner.Text()
	if !strings.HasPrefix(line, "data: ") {
		t.Errorf("expected SSE data line, got %q", line)
	}
	srv.registry.CancelAll()
}

func TestCSRFProtectBlocksCrossOrigin(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/runs", strings.NewReader("{}"))
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for cross-origin POST, got %d", resp.StatusCode)
	}
}

func TestRegistryRejectsDuplicateRunID(t *testing.T) {
	r := NewRegistry()
	rs := &RunState{RunID: "dup", Broadcaster: eventbus.NewBroadcaster()}
	if err := r.Register("dup", rs); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("dup", rs); err == nil {
		t.Error("expected error registering duplicate run id")
	}
}
