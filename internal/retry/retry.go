// Package retry runs an operation a bounded number of times.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned (wrapped with the last attempt's error) when every attempt failed.
var ErrExhausted = errors.New("attempts exhausted")

// Hook observes a failed attempt. attempt is 1-based.
type Hook func(attempt int, err error)

type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do stops and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn up to attempts times until it succeeds. Failed attempts are
// reported to every hook. A context error or a Permanent error ends the loop
// early.
func Do[T any](ctx context.Context, attempts int, fn func(ctx context.Context, attempt int) (T, error), hooks ...Hook) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		for _, h := range hooks {
			h(attempt, err)
		}
		var p *permanent
		if errors.As(err, &p) {
			return zero, p.err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
