// Package retry provides retry utilities for extension calls that reach
// external systems.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config holds retry configuration
type Config struct {
	MaxAttempts   int           // Maximum number of attempts, the first one included
	InitialDelay  time.Duration // Delay before the second attempt
	MaxDelay      time.Duration // Maximum delay between attempts
	BackoffFactor float64       // Exponential backoff multiplier
	Jitter        bool          // Add randomness to delay
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Option customizes retry behavior
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithInitialDelay sets the initial retry delay
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum retry delay
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithJitter enables or disables jitter
func WithJitter(on bool) Option {
	return func(c *Config) {
		c.Jitter = on
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether another attempt may succeed after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do executes fn until it succeeds, fails permanently, the attempts run
// out or ctx is done.
func Do(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			var p *permanentError
			if errors.As(err, &p) {
				return p.err
			}
			return err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		actualDelay := delay
		if config.Jitter && delay >= 4 {
			// ±25%
			jitterRange := delay / 4
			actualDelay = delay - jitterRange + time.Duration(rand.Int64N(int64(jitterRange)*2))
		}

		timer := time.NewTimer(actualDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	if config.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, config.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry logic and returns its last result
func DoWithResult[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	}, opts...)
	return result, err
}
