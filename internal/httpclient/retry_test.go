package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestShouldRetryNeverRetries4xx(t *testing.T) {
	p := NewRetryPolicy()
	assert.False(t, p.ShouldRetry(0, 404, nil), "4xx is a successful exchange per SPEC_FULL.md §4.5, not a retry candidate")
}

func TestShouldRetryRetries5xxUntilLastAttempt(t *testing.T) {
	p := NewRetryPolicy()
	assert.True(t, p.ShouldRetry(0, 503, nil))
	assert.True(t, p.ShouldRetry(1, 503, nil))
	assert.False(t, p.ShouldRetry(p.MaxAttempts-1, 503, nil), "the final attempt must not be retried again")
}

func TestCalculateBackoffGrowsWithAttemptAndRespectsCeiling(t *testing.T) {
	p := NewRetryPolicy()

	b0 := p.CalculateBackoff(0)
	b3 := p.CalculateBackoff(3)

	assert.Greater(t, b3, b0)
	assert.LessOrEqual(t, b3, p.MaxBackoff+time.Duration(float64(p.MaxBackoff)*0.25))
}

func TestExecuteReturnsImmediatelyOnNonRetryableStatus(t *testing.T) {
	p := NewRetryPolicy()
	logger := arbor.NewLogger()
	calls := 0

	status, err := p.Execute(context.Background(), logger, func() (int, error) {
		calls++
		return 200, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetriesUpToMaxAttemptsThenGivesUp(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:          3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           5 * time.Millisecond,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{503},
	}
	logger := arbor.NewLogger()
	calls := 0

	status, err := p.Execute(context.Background(), logger, func() (int, error) {
		calls++
		return 503, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 503, status)
	assert.Equal(t, 3, calls)
}

func TestExecuteStopsOnContextCancellation(t *testing.T) {
	p := NewRetryPolicy()
	logger := arbor.NewLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, logger, func() (int, error) {
		return 503, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableErrorRecognizesDeadlineExceeded(t *testing.T) {
	assert.True(t, isRetryableError(context.DeadlineExceeded))
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(errors.New("some unrelated error")))
}
