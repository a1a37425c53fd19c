package studytutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr(msg string) error {
	return &CapabilityError{Capability: "test", Retryable: true, Err: errors.New(msg)}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		Base:         2,
		sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls <= 3 {
			return transientErr("rate limited")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "3 transient failures should mean exactly 3 retries")
	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "delays must strictly increase")
	}
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
	assert.Equal(t, 40*time.Millisecond, delays[2])
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Base:         2,
		sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return transientErr("still down")
	})

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
	// No delay after the final attempt.
	assert.Len(t, delays, 2)
}

func TestRetryDoesNotRetryPermanentFailures(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Base:         2,
		sleep: func(_ context.Context, _ time.Duration) error {
			t.Fatal("sleep should never be called for a permanent failure")
			return nil
		},
	}

	permanent := &CapabilityError{Capability: "test", StatusCode: 401, Retryable: false, Err: errors.New("bad key")}
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsRetryable(err))
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, Base: 2}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return transientErr("flaky")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
