package completion

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error is the interface every completion-path error implements so the
// analyzer/synthesizer can decide whether to retry without inspecting a
// specific provider's wire format.
type Error interface {
	error
	Provider() string
	StatusCode() int
	Retryable() bool
	RetryAfter() *time.Duration
}

type ConfigurationError struct{ Message string }

func (e *ConfigurationError) Error() string             { return "completion configuration error: " + e.Message }
func (e *ConfigurationError) Provider() string           { return "" }
func (e *ConfigurationError) StatusCode() int            { return 0 }
func (e *ConfigurationError) Retryable() bool            { return false }
func (e *ConfigurationError) RetryAfter() *time.Duration { return nil }

type httpError struct {
	provider   string
	statusCode int
	message    string
	retryable  bool
	retryAfter *time.Duration
}

func (e *httpError) Error() string {
	msg := strings.TrimSpace(e.message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s completion error (status=%d): %s", e.provider, e.statusCode, msg)
}
func (e *httpError) Provider() string           { return e.provider }
func (e *httpError) StatusCode() int            { return e.statusCode }
func (e *httpError) Retryable() bool            { return e.retryable }
func (e *httpError) RetryAfter() *time.Duration { return e.retryAfter }

// FromHTTPStatus classifies a provider's HTTP response into a typed,
// retryability-aware error. Unknown status codes default to retryable,
// on the theory that an unrecognized failure is more likely transient
// than a request we'll never be able to fix by retrying.
func FromHTTPStatus(provider string, statusCode int, message string, retryAfter *time.Duration) error {
	e := &httpError{provider: strings.TrimSpace(provider), statusCode: statusCode, message: message, retryAfter: retryAfter}
	switch statusCode {
	case 400, 401, 403, 404, 413, 422:
		e.retryable = false
	case 408, 429, 500, 502, 503, 504:
		e.retryable = true
	default:
		e.retryable = true
	}
	return e
}

// ParseRetryAfter parses a Retry-After header: either integer seconds or
// an HTTP-date.
func ParseRetryAfter(v string, now time.Time) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}
