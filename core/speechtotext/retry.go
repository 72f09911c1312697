package speechtotext

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
)

// BackoffFunc returns the wait before the given attempt, counted from 1.
type BackoffFunc func(attempt int, base time.Duration) time.Duration

func LinearBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * base
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     BackoffFunc
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Backoff:     LinearBackoff,
	}
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return LinearBackoff(attempt, p.BaseDelay)
	}
	return p.Backoff(attempt, p.BaseDelay)
}

// Exhausted reports whether attempt is past the budget.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}

// Wait sleeps for the delay of attempt or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
