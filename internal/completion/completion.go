// Package completion is the provider-agnostic interface the analyzer and
// synthesizer fall back to when their rule-based paths can't resolve a
// failure. It never talks to a specific vendor SDK — only a generic
// completion request/response shape any HTTP-based provider can satisfy.
package completion

import (
	"context"
	"fmt"
)

// Request is one completion call.
type Request struct {
	Provider    string
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("completion request: prompt must not be empty")
	}
	return nil
}

// Response is a provider's answer to one Request.
type Response struct {
	Provider string
	Model    string
	Text     string
	Raw      any
}

// Adapter is implemented by each provider integration (one HTTP backend
// per vendor).
type Adapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Client sends each request to one registered provider (the one the
// request names, or the client default), rotating through that provider's
// configured API keys round-robin so a single rate-limited key doesn't
// stall every completion call.
type Client struct {
	providers       map[string]Adapter
	keys            map[string][]string
	next            map[string]int
	defaultProvider string
}

func NewClient() *Client {
	return &Client{
		providers: map[string]Adapter{},
		keys:      map[string][]string{},
		next:      map[string]int{},
	}
}

func (c *Client) Register(adapter Adapter, apiKeys ...string) {
	c.providers[adapter.Name()] = adapter
	if len(apiKeys) > 0 {
		c.keys[adapter.Name()] = apiKeys
	}
	if c.defaultProvider == "" {
		c.defaultProvider = adapter.Name()
	}
}

func (c *Client) SetDefaultProvider(name string) { c.defaultProvider = name }

// nextKey returns the next API key for a provider in round-robin order,
// or "" if the provider has no keys configured (e.g. it reads one from
// its own environment).
func (c *Client) nextKey(provider string) string {
	keys := c.keys[provider]
	if len(keys) == 0 {
		return ""
	}
	i := c.next[provider] % len(keys)
	c.next[provider] = i + 1
	return keys[i]
}

// Complete resolves the request's provider (or the client default),
// rotates that provider's key, and delegates to the adapter.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	provider := req.Provider
	if provider == "" {
		provider = c.defaultProvider
	}
	if provider == "" {
		return Response{}, &ConfigurationError{Message: "no provider specified and no default provider configured"}
	}
	adapter, ok := c.providers[provider]
	if !ok {
		return Response{}, &ConfigurationError{Message: fmt.Sprintf("unknown completion provider: %s", provider)}
	}
	req.Provider = provider
	key := c.nextKey(provider)
	ctx = withAPIKey(ctx, key)
	return adapter.Complete(ctx, req)
}

type apiKeyCtxKey struct{}

func withAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

// APIKeyFromContext lets an adapter read the key Client selected for this
// call via round-robin, rather than reading its own environment directly.
func APIKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyCtxKey{}).(string)
	return v, ok
}
