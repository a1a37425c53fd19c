package studytutor

import (
	"context"
	"math"
	"time"
)

// RetryPolicy is a bounded exponential backoff policy for capability and
// store calls. The delay before retry attempt k (1-indexed) is
// InitialDelay * Base^(k-1). No delay is applied after the final attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Base         float64

	// sleep is replaced in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the upstream API client defaults: five attempts
// with a one second initial delay doubling each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Base:         2,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. Only transient capability failures are
// retried; the last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		VerboseLog("Transient failure on attempt %d/%d, retrying in %s: %v",
			attempt, attempts, p.delay(attempt), err)
		if sleepErr := sleep(ctx, p.delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 2
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(base, float64(attempt-1)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
