// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy controls how failed operations are retried. There is no backoff:
// every retry waits exactly Delay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// SessionCreate returns the policy used for provider session creation:
// 3 attempts, 2s between attempts.
func SessionCreate() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// Bound returns the longest Execute can run when every attempt takes up
// to perAttempt.
func (p Policy) Bound(perAttempt time.Duration) time.Duration {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return time.Duration(attempts)*perAttempt + time.Duration(attempts-1)*p.Delay
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts  int
	LastError error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastError)
}

// Unwrap returns the error from the last attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// Execute runs op until it succeeds, fails with an error isRetryable
// rejects, or MaxAttempts is reached. The delay between attempts waits on
// ctx, so cancelling ctx stops further attempts; in that case the context
// error is returned joined with the last operation error.
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context) error, isRetryable Classifier) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable == nil || !isRetryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return &ExhaustedError{
		Attempts:  attempts,
		LastError: lastErr,
	}
}
