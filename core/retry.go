package core

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy determines caller-side retry behavior for failed requests.
//
// This is distinct from the transport's single device-registration retry,
// which is bounded and internal. A RetryPolicy only sees errors that have
// already been surfaced by the transport.
type RetryPolicy interface {
	// NextDelay returns the delay before the next retry attempt and whether to retry.
	// attempt starts at 0 for the first retry after the initial failure.
	NextDelay(attempt int, err error) (delay time.Duration, ok bool)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay before first retry (default: 1s)
	MaxDelay   time.Duration // Maximum delay cap (default: 30s)
	Jitter     float64       // Jitter factor 0.0-1.0 (default: 0.2)
}

// DefaultRetryPolicy returns a retry policy with sensible defaults.
// Uses exponential backoff with jitter, max 3 retries, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
	})
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.2
	}
	return &exponentialBackoff{cfg: cfg}
}

type exponentialBackoff struct {
	cfg RetryConfig
}

func (e *exponentialBackoff) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= e.cfg.MaxRetries {
		return 0, false
	}

	if !isRetryable(err) {
		return 0, false
	}

	// When the server says how long to wait, honor it (capped).
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		delay := time.Duration(apiErr.RetryAfter) * time.Second
		if delay > e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
		}
		return delay, true
	}

	// Exponential backoff: baseDelay * 2^attempt
	delay := float64(e.cfg.BaseDelay) * math.Pow(2, float64(attempt))

	if e.cfg.Jitter > 0 {
		jitterRange := delay * e.cfg.Jitter
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay > float64(e.cfg.MaxDelay) {
		delay = float64(e.cfg.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay), true
}

// isRetryable determines if an error should trigger a caller-side retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is not retryable.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch {
	// Retrying cannot fix a bad credential, a bad request, or a decode bug.
	case errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrInvalidAppIdentity),
		errors.Is(err, ErrInvalidTeamIdentity),
		errors.Is(err, ErrMalformedRequest),
		errors.Is(err, ErrEncode),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrInsufficientBalance):
		return false

	// A fresh attempt produces a fresh timestamp, nonce, and signature.
	case errors.Is(err, ErrTimestampExpired),
		errors.Is(err, ErrNonceReused):
		return true

	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNetwork),
		errors.Is(err, ErrStreamInterrupted),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrServer):
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Status)
	}

	return false
}

// isRetryableStatus checks if an HTTP status code indicates a retryable error.
func isRetryableStatus(status int) bool {
	if status == 429 {
		return true
	}
	if status >= 500 && status < 600 {
		return true
	}
	return false
}
