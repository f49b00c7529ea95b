package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(maxRetries int, slept *[]time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  100 * time.Millisecond,
		MaxJitter:  10 * time.Millisecond,
		Rand:       func() float64 { return 0.5 },
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var slept []time.Duration
	calls := 0

	result, err := Do(context.Background(), recordingPolicy(3, &slept), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{105 * time.Millisecond, 205 * time.Millisecond}, slept)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var slept []time.Duration
	calls := 0
	cause := errors.New("connection reset")

	_, err := Do(context.Background(), recordingPolicy(2, &slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	var slept []time.Duration
	calls := 0
	cause := errors.New("400 bad request")

	_, err := Do(context.Background(), recordingPolicy(5, &slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(cause)
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDo_ZeroRetries(t *testing.T) {
	var slept []time.Duration
	calls := 0

	_, err := Do(context.Background(), recordingPolicy(0, &slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := Policy{
		MaxRetries: 5,
		BaseDelay:  time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	p := Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Sleep:      func(context.Context, time.Duration) error { return nil },
		OnRetry:    func(attempt int, err error, d time.Duration) { attempts = append(attempts, attempt) },
	}

	_, _ = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, errors.New("x")
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
}

func TestPermanentHelpers(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(errors.New("x")))
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
