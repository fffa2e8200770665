// Package retry implements exponential backoff with jitter for the
// collaborator calls (embedding, generation, summarization) that the
// compression scheduler and provider adapters make against external
// services.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// Func is the operation retried by Do.
type Func func() error

type config struct {
	maxRetries int
	baseWait   time.Duration
}

// Option configures a Do call.
type Option func(*config)

// WithMaxRetries overrides the default retry count.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait overrides the default backoff base.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// recoverableError marks an error as worth retrying. Errors that don't
// implement this are treated as permanent and returned immediately.
type recoverableError struct {
	err error
}

func (r *recoverableError) Error() string { return r.err.Error() }
func (r *recoverableError) Unwrap() error { return r.err }

// NewRecoverableError wraps err to signal that Do should keep retrying it.
func NewRecoverableError(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// IsRecoverable reports whether err (or anything it wraps) was marked
// recoverable via NewRecoverableError.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var r *recoverableError
	return errors.As(err, &r)
}

// Do runs f, retrying on recoverable errors with exponential backoff and
// jitter until maxRetries is exhausted or ctx is canceled. Non-recoverable
// errors are returned immediately without retry. The final attempt's error
// is returned unwrapped from its recoverableError marker.
func Do(ctx context.Context, f Func, opts ...Option) error {
	cfg := config{maxRetries: DefaultMaxRetries, baseWait: DefaultBaseWait}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(cfg.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		err := f()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return unwrapRecoverable(err)
		}
		lastErr = err
	}
	return unwrapRecoverable(lastErr)
}

func unwrapRecoverable(err error) error {
	var r *recoverableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}
