package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is the user agent string used for outbound requests.
const DefaultUserAgent = "marketgate/1.0"

// ErrHTTP wraps an HTTP error response with its status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// IsClientError reports whether err is an HTTP response that retrying
// cannot fix (400, 401, 403, 404).
func IsClientError(err error) bool {
	he, ok := err.(*ErrHTTP)
	if !ok {
		return false
	}
	switch he.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized,
		http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// RetryConfig bounds the retry loop of DoGetRetry.
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetry is a conservative default: three attempts, exponential
// backoff from 500ms, each attempt bounded to ten seconds.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	BaseDelay:      500 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	AttemptTimeout: 10 * time.Second,
}

// DoGet performs a single GET request and returns the response body.
// Responses with status >= 400 are returned as *ErrHTTP.
func DoGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return io.ReadAll(resp.Body)
}

// DoGetRetry performs a GET with per-attempt timeout and exponential
// backoff. Client errors (400/401/403/404) fail immediately since retrying
// cannot help; transport errors and 5xx responses are retried up to
// cfg.MaxAttempts.
func DoGetRetry(ctx context.Context, client *http.Client, cfg RetryConfig, url string, headers map[string]string) ([]byte, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetry
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		}
		body, err := DoGet(attemptCtx, client, url, headers)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return body, nil
		}
		if IsClientError(err) {
			return nil, err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}
