// Package httpapi is the JSON-over-HTTP plumbing shared by the embedding,
// completion and messaging adapters: request pacing, bounded retries with
// exponential backoff, and error classification.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/shopbot/internal/logger"
)

// Default retry settings.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
)

// Policy bounds how often and how fast a failed call is repeated.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. A server asking for longer via
	// Retry-After ends the retries instead.
	MaxDelay time.Duration
}

// DefaultPolicy returns a policy of 4 attempts, 200ms doubling to 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// WithAttempts returns p with MaxAttempts set to n when n is positive.
func (p Policy) WithAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Delay returns the backoff before attempt+1, where attempt is zero-based.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.maxDelay()
	if attempt > 30 {
		return maxDelay
	}
	d := base << attempt
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return d
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return DefaultMaxDelay
	}
	return p.MaxDelay
}

// RetryableError marks a failure worth another attempt.
// After, when positive, is the server-requested wait.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so Do repeats the call.
func Retryable(err error, after time.Duration) error {
	return &RetryableError{Err: err, After: after}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. A Retry-After longer than MaxDelay stops at once.
// The last error is returned unwrapped from its RetryableError marker.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}
		if attempt == attempts-1 {
			return retryable.Err
		}

		wait := p.Delay(attempt)
		if retryable.After > p.maxDelay() {
			logger.Debug("server asked to retry after %s, giving up", retryable.After)
			return retryable.Err
		}
		if retryable.After > 0 {
			wait = retryable.After
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return errors.Join(retryable.Err, sleepErr)
		}
	}
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
