package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExecutorConfig holds the executor's transport and retry settings.
type ExecutorConfig struct {
	BaseURL    string
	Token      string // bearer credential attached to every call
	Timeout    time.Duration
	MaxRetries int           // retry attempts for rate-limited responses
	Backoff    time.Duration // base backoff, doubled per attempt
}

// Executor performs a single logical backend request: one HTTP call with
// transparent retry on rate-limit responses and translation of every
// failure into a stable *Error.
type Executor struct {
	cfg        ExecutorConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewExecutor creates an executor. Zero config fields get conservative
// defaults (15s timeout, 3 retries, 1s base backoff).
func NewExecutor(cfg ExecutorConfig, log zerolog.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	return &Executor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "executor").Logger(),
	}
}

// Execute performs method+path against the backend with the given payload
// (marshalled as JSON, nil for no body) and query parameters.
// Rate-limited responses are retried with exponential backoff
// (delay = backoff << attempt); every other failure propagates immediately
// as a *Error.
func (e *Executor) Execute(method, path string, payload interface{}, query url.Values) (json.RawMessage, error) {
	reqID := uuid.New().String()

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := e.cfg.Backoff << uint(attempt-1)
			e.log.Warn().
				Str("request_id", reqID).
				Str("method", method).
				Str("path", path).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("Rate limited by backend, retrying")
			time.Sleep(wait)
		}

		body, err := e.doRequest(reqID, method, path, payload, query)
		if err == nil {
			return body, nil
		}

		lastErr = err
		var apiErr *Error
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	e.log.Error().
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Int("attempts", e.cfg.MaxRetries+1).
		Msg("Retries exhausted")

	return nil, lastErr
}

// doRequest performs one HTTP round trip.
func (e *Executor) doRequest(reqID, method, path string, payload interface{}, query url.Values) (json.RawMessage, error) {
	requestURL := strings.TrimRight(e.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}

	e.log.Debug().
		Str("request_id", reqID).
		Str("method", method).
		Str("url", requestURL).
		Msg("Backend request")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := statusError(resp.StatusCode, string(body))
		e.log.Debug().
			Str("request_id", reqID).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("Backend returned error status")
		return nil, apiErr
	}

	return json.RawMessage(body), nil
}

// transportError classifies a failed round trip. A deadline is reported
// as Timeout, anything else as NetworkError; the two are distinct kinds
// because a timeout usually means the backend is slow while a network
// error means it is unreachable.
func transportError(err error) *Error {
	kind := KindNetworkError

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, Message: err.Error(), Err: err}
}
