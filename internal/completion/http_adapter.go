package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAdapter is a reference completion provider that speaks a generic
// "POST prompt, get text back" JSON contract. Real deployments register
// one of these per vendor endpoint; none of the wire-protocol specifics
// of any particular vendor are in scope here (see SPEC_FULL.md Non-goals).
type HTTPAdapter struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

func NewHTTPAdapter(name, endpoint string) *HTTPAdapter {
	return &HTTPAdapter{name: name, endpoint: endpoint, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

func (a *HTTPAdapter) Name() string { return a.name }

type httpRequestBody struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type httpResponseBody struct {
	Text string `json:"text"`
}

func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(httpRequestBody{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key, ok := APIKeyFromContext(ctx); ok {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, NewRequestTimeoutOrTransportError(a.name, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return Response{}, FromHTTPStatus(a.name, resp.StatusCode, string(raw), retryAfter)
	}

	var decoded httpResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}

	return Response{Provider: a.name, Model: req.Model, Text: decoded.Text, Raw: raw}, nil
}

// NewRequestTimeoutOrTransportError wraps a low-level transport failure
// (connection refused, context deadline, DNS failure) as a retryable
// completion error rather than leaking a raw net/http error type up to
// callers that switch on completion.Error.
func NewRequestTimeoutOrTransportError(provider string, err error) error {
	return &httpError{provider: provider, statusCode: 0, message: err.Error(), retryable: true}
}
