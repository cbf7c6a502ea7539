package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgeline/healer/internal/eventbus"
	"github.com/forgeline/healer/internal/model"
	"github.com/forgeline/healer/internal/scorer"
)

// RunState tracks one submitted run: its live event stream, its
// cancellation handle, and its terminal outcome once the orchestrator
// goroutine returns.
type RunState struct {
	RunID       string
	Broadcaster *eventbus.Broadcaster
	Cancel      context.CancelFunc
	StartedAt   time.Time

	mu      sync.Mutex
	done    bool
	results scorer.Results
	runErr  error
}

// SetResult records the terminal outcome of the run.
func (rs *RunState) SetResult(results scorer.Results, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results = results
	rs.runErr = err
	rs.done = true
}

// Status derives the current status from either the terminal result or,
// while still running, the last node/iteration seen in the event history
// — the same way a status query has no access to the live Run struct
// directly but can always read back what it already broadcast.
func (rs *RunState) Status() RunStatusResponse {
	rs.mu.Lock()
	done, results, runErr := rs.done, rs.results, rs.runErr
	rs.mu.Unlock()

	resp := RunStatusResponse{RunID: rs.RunID}
	if done {
		resp.Status = results.FinalStatus
		if runErr != nil {
			resp.Status = string(model.RunFailed)
			resp.Error = runErr.Error()
		}
		return resp
	}

	resp.Status = string(model.RunPending)
	history := rs.Broadcaster.History()
	for i := len(history) - 1; i >= 0; i-- {
		ev := history[i]
		if ev.Node != "" {
			resp.CurrentNode = ev.Node
			resp.Iteration = ev.Iteration
			break
		}
	}
	if resp.CurrentNode != "" {
		resp.Status = "running"
	}
	return resp
}

// Registry tracks every run submitted to this server instance.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*RunState)}
}

// Register adds a run to the registry. Returns an error if the run_id is
// already in use.
func (r *Registry) Register(runID string, rs *RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("run %s already exists", runID)
	}
	r.runs[runID] = rs
	return nil
}

func (r *Registry) Get(runID string) (*RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.runs[runID]
	return rs, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll cancels every in-flight run's context, used on server
// shutdown so a dying process doesn't leave orphaned clones mid-fix.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.runs {
		if rs.Cancel != nil {
			rs.Cancel()
		}
	}
}
