package server

import "github.com/forgeline/healer/internal/model"

// SubmitRunRequest is the POST /runs request body: a run-start command as
// described by spec.md's run-start schema, validated the same way before
// the orchestrator touches the network.
type SubmitRunRequest = model.RunSpec

// SubmitRunResponse is returned once a run has been accepted and handed
// to a background orchestrator goroutine.
type SubmitRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunStatusResponse is returned by GET /runs/{id} (spec.md §6's status
// query: run_id, status, current_node, iteration).
type RunStatusResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	CurrentNode string `json:"current_node,omitempty"`
	Iteration   int    `json:"iteration,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ErrorResponse is a standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
