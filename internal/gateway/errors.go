package gateway

import (
	"fmt"
	"net/http"
)

// Kind classifies a failed backend call into a stable category that
// callers can branch on without inspecting status codes or messages.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindServerError  Kind = "server_error"
	KindNetworkError Kind = "network_error"
	KindTimeout      Kind = "timeout"
	KindUnknown      Kind = "unknown"
)

// Error is the error type surfaced for every failed backend call.
// Kind is stable across backend versions; Status and Message carry the
// original diagnostics.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status code, 0 for transport-level failures
	Message string // human-readable detail from the backend or transport
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend request failed (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("backend request failed (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the executor's retry policy applies.
// Only rate-limit responses are retried; retrying server errors or
// timeouts would amplify backend load during an outage.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindRateLimited
}

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

// statusError builds an Error from a non-2xx response.
func statusError(status int, body string) *Error {
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return &Error{
		Kind:    kindForStatus(status),
		Status:  status,
		Message: body,
	}
}
