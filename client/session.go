// Package client provides the HTTP session shared by every catalog request.
//
// A Session is explicitly constructed and owned by its caller; there is no
// package-level default. It carries the request timeout, a request pacing
// limiter, the retry policy for transient failures, and the User-Agent.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gospellibrary/sdk-go/types"
)

// maxErrorBody bounds how much of a failed response is kept on StatusError.
const maxErrorBody = 512

// StatusError represents a non-200 response from the CDN.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Is reports every non-200 status as types.ErrNotFound so callers can treat
// missing documents uniformly.
func (e *StatusError) Is(target error) bool {
	return target == types.ErrNotFound
}

// IsNotFoundError checks if an error is a 404 Not Found error.
func IsNotFoundError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}

	return false
}

// Session wraps an HTTP client with pacing and retries.
type Session struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewSession creates a Session from the transport settings in cfg.
func NewSession(cfg types.Config) *Session {
	cfg = cfg.WithDefaults()

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Session{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: maxRetries,
		backoff:    time.Second,
		logger:     cfg.Logger,
	}
}

// WithHTTPClient returns a copy of the session that sends requests through hc.
func (s *Session) WithHTTPClient(hc *http.Client) *Session {
	clone := *s
	clone.httpClient = hc
	return &clone
}

// WithBackoff returns a copy of the session using base as the first retry delay.
func (s *Session) WithBackoff(base time.Duration) *Session {
	clone := *s
	clone.backoff = base
	return &clone
}

// Get fetches url and returns the full response body on HTTP 200.
//
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff. Any other status, or a retryable status that persists, is
// returned as *StatusError.
func (s *Session) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoff * time.Duration(math.Pow(2, float64(attempt-1)))
			s.logger.Debug("retrying request", "url", url, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retry, err := s.do(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (s *Session) do(ctx context.Context, url string) (body []byte, retry bool, err error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, statusErr
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, false, nil
}
