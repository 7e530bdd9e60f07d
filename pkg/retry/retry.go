package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy controls exponential backoff retries.
type Policy struct {
	Enabled      bool
	MaxAttempts  int // retries after the first call
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// Retryable decides whether an error is worth another attempt.
	// nil retries every error not marked Permanent.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do stops retrying and returns err as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, fails permanently, attempts run out or
// ctx is done.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions returning a result.
func DoValue[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := 1
	if p.Enabled && p.MaxAttempts > 0 {
		attempts += p.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("retry cancelled: %w", lastErr)
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", lastErr)
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// Backoff returns the wait before retry number attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	// +-25% jitter
	if p.Jitter && delay > 0 {
		delay = delay * (0.75 + rand.Float64()*0.5)
	}
	return time.Duration(delay)
}
