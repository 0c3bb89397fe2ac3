// Package httpclient provides a pooled, polite HTTP client: EWMA-paced per-host
// requests, conditional GET, user-agent rotation, and exponential-backoff
// retry. Adapted from the teacher's internal/services/crawler/retry.go and
// rate_limiter.go (rate_limiter.go's per-host delay idea is superseded here by
// the EWMA pacer required by SPEC_FULL.md §4.5; see DESIGN.md).
package httpclient

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines retry behavior with exponential backoff. Kept from the
// teacher's RetryPolicy shape; constants changed to SPEC_FULL.md §4.5's
// "exponential backoff base 10ms, up to 3 attempts".
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
}

// NewRetryPolicy returns the crawler's default retry policy.
func NewRetryPolicy() *RetryPolicy {
	codes := make([]int, 0, 100)
	for code := 500; code <= 599; code++ {
		codes = append(codes, code)
	}
	return &RetryPolicy{
		MaxAttempts:          3,
		InitialBackoff:       10 * time.Millisecond,
		MaxBackoff:           1 * time.Second,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: codes,
	}
}

// ShouldRetry reports whether attempt should be retried given the observed
// status code and error. A 4xx response is never retried (SPEC_FULL.md §4.5:
// "A 4xx is returned to the caller as a successful exchange").
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}
	if statusCode > 0 {
		return p.isRetryableStatusCode(statusCode)
	}
	if err != nil {
		return isRetryableError(err)
	}
	return false
}

// CalculateBackoff computes the backoff for attempt with ±25% jitter.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// Execute runs fn, retrying on a retryable status code or transport error per
// the policy. fn must return the HTTP status code it observed (0 on
// transport failure) and any transport error.
func (p *RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, fn func() (int, error)) (int, error) {
	var lastErr error
	var statusCode int

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		statusCode, lastErr = fn()

		if lastErr == nil && !p.isRetryableStatusCode(statusCode) {
			return statusCode, nil
		}

		if !p.ShouldRetry(attempt, statusCode, lastErr) {
			return statusCode, lastErr
		}

		backoff := p.CalculateBackoff(attempt)
		logger.Warn().
			Int("attempt", attempt+1).
			Int("status_code", statusCode).
			Err(lastErr).
			Dur("backoff", backoff).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return statusCode, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return statusCode, lastErr
}

func (p *RetryPolicy) isRetryableStatusCode(statusCode int) bool {
	for _, code := range p.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
