package ciwatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forgeline/healer/internal/model"
)

// HTTPForge is a reference Forge adapter against a generic "list workflow
// runs for a branch" JSON endpoint, shaped like GitHub Actions' runs API
// closely enough to be a drop-in for it, without committing to that
// vendor's actual client library.
type HTTPForge struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPForge(baseURL, token string) *HTTPForge {
	return &HTTPForge{BaseURL: baseURL, Token: token, Client: &http.Client{Timeout: 15 * time.Second}}
}

type forgeRun struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HTMLURL    string `json:"html_url"`
}

type forgeRunList struct {
	Runs []forgeRun `json:"workflow_runs"`
}

func (f *HTTPForge) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forge request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("forge: not found")

func (f *HTTPForge) LatestRun(ctx context.Context, repoSlug, branch string) (Observation, error) {
	var list forgeRunList
	path := fmt.Sprintf("/repos/%s/actions/runs?branch=%s&per_page=1", repoSlug, branch)
	if err := f.get(ctx, path, &list); err != nil {
		if err == errNotFound || len(list.Runs) == 0 {
			return Observation{Status: model.CINoCI}, nil
		}
		return Observation{}, err
	}
	if len(list.Runs) == 0 {
		return Observation{Status: model.CINoCI}, nil
	}
	run := list.Runs[0]
	return Observation{
		Status:      mapForgeStatus(run.Status, run.Conclusion),
		ForgeRunID:  run.ID,
		WorkflowURL: run.HTMLURL,
	}, nil
}

func (f *HTTPForge) HasWorkflow(ctx context.Context, repoSlug string) (bool, error) {
	var list forgeRunList
	path := fmt.Sprintf("/repos/%s/actions/runs?per_page=1", repoSlug)
	if err := f.get(ctx, path, &list); err != nil {
		if err == errNotFound {
			return false, nil
		}
		return false, err
	}
	return len(list.Runs) > 0, nil
}

func mapForgeStatus(status, conclusion string) model.CIStatus {
	switch status {
	case "queued", "waiting", "requested":
		return model.CIPending
	case "in_progress":
		return model.CIRunning
	case "completed":
		if conclusion == "success" {
			return model.CIPassed
		}
		return model.CIFailed
	default:
		return model.CIPending
	}
}
