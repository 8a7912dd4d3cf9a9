package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryableError marks an error as transient. The retry wrapper keeps going
// when IsRetryable reports true and gives up immediately otherwise.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was marked transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryConfig controls the resilient-call wrapper.
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for the exponential backoff
}

// DefaultRetryConfig matches the external-call policy: 3 attempts, exponential
// backoff starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Retry runs op until it succeeds, returns a non-retryable error, or attempts
// are exhausted. isRetryable may be nil, in which case IsRetryable is used.
// The context cancels both the waits and further attempts.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error, isRetryable func(error) bool) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
