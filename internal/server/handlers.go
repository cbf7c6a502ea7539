package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/redis/go-redis/v9"

	"github.com/forgeline/healer/internal/config"
	"github.com/forgeline/healer/internal/eventbus"
	"github.com/forgeline/healer/internal/logging"
	"github.com/forgeline/healer/internal/model"
	"github.com/forgeline/healer/internal/orchestrator"
)

// validRunID matches ULIDs and other safe client-supplied identifiers.
var validRunID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   len(s.registry.List()),
	})
}

// handleSubmitRun accepts a run-start command, validates it against
// RunSpecSchema, and launches an orchestrator for it in the background.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := config.Validate(spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spec = spec.ApplyDefaults()

	runID := spec.RunID
	if runID == "" {
		runID = model.NewRunID()
		spec.RunID = runID
	}
	if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "run_id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}

	healBranch := model.DeriveHealBranch(spec.TeamName, spec.LeaderName)
	logger, err := logging.New(runID, spec.TeamName, healBranch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("build logger: %v", err))
		return
	}
	broadcaster := eventbus.NewBroadcaster()
	runCtx, cancel := context.WithCancel(s.baseCtx)

	rs := &RunState{RunID: runID, Broadcaster: broadcaster, Cancel: cancel}
	if err := s.registry.Register(runID, rs); err != nil {
		cancel()
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if s.deps.Redis != nil {
		go relayToRedis(runCtx, s.deps.Redis, runID, broadcaster)
	}

	orch := orchestrator.New(s.deps.Journal, broadcaster, s.deps.Metrics, logger, s.deps.Synth, s.deps.Completion, s.deps.Watcher, s.deps.WorkRoot, s.deps.OutputsDir, s.deps.Remote)

	go func() {
		results, runErr := orch.Execute(runCtx, spec)
		rs.SetResult(results, runErr)
	}()

	writeJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: runID, Status: "accepted"})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	rs, ok := s.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	writeJSON(w, http.StatusOK, rs.Status())
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	rs, ok := s.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	writeSSE(w, r, rs.Broadcaster)
}

// handleGetResults returns the results.json artifact for a run this
// server instance has registered, reading it from the journal rather
// than from the in-memory RunState. A run missing from the registry
// (e.g. one submitted before a server restart) gets a 404.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, ok := s.registry.Get(runID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	data, err := s.deps.Journal.GetArtifact(r.Context(), runID, "results.json")
	if err != nil {
		writeError(w, http.StatusNotFound, "results not yet available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	rs, ok := s.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	rs.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

// relayToRedis forwards every event b fans out to a Redis pub/sub
// channel until the broadcaster closes or ctx is cancelled.
func relayToRedis(ctx context.Context, client *redis.Client, runID string, b *eventbus.Broadcaster) {
	relay := eventbus.NewRedisRelay(client, runID)
	events, _, unsub := b.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = relay.Publish(ctx, ev)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
