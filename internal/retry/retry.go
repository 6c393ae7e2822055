// Package retry wraps individual flaky interaction steps with exponential
// backoff. It is never applied to a run as a whole; run-level retry is the
// scheduler's RETRYING state.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy is the attempt budget for one step.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches what page steps use unless configured otherwise.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to maxAttempts times. After failed attempt k (0-based) it
// waits baseDelay * 2^k before the next one. When attempts run out the last
// error is returned as op produced it. Context cancellation and Permanent
// errors end the loop early.
func Do[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var k uint
	backoff := goretry.WithMaxRetries(uint64(maxAttempts-1), goretry.BackoffFunc(func() (time.Duration, bool) {
		d := baseDelay << k
		k++
		return d, false
	}))

	var out T
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return goretry.RetryableError(err)
	})
	return out, err
}

// With applies p to op.
func With[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	return Do(ctx, p.MaxAttempts, p.BaseDelay, op)
}

// Step is Do for operations without a value.
func Step(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p.MaxAttempts, p.BaseDelay, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
