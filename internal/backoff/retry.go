package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retry loop. At least one of MaxAttempts or Deadline should
// be set; with neither the loop runs until ctx is done.
type Policy struct {
	// MaxAttempts caps the number of calls. Zero means no cap.
	MaxAttempts int
	// AttemptTimeout bounds each call. Zero leaves only the overall deadline.
	AttemptTimeout time.Duration
	// Deadline bounds the whole loop, waits included.
	Deadline time.Duration
	// Delay between attempts. Defaults to a fixed DefaultInitial delay.
	Delay *Backoff
}

// Error is returned when every attempt failed.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or the policy
// is exhausted. fn receives the attempt number starting at 1 and a context
// carrying the attempt timeout. No wait is started that would end past the
// deadline.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	var deadline time.Time
	if p.Deadline > 0 {
		deadline = time.Now().Add(p.Deadline)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	delay := p.Delay
	if delay == nil {
		delay = Fixed(DefaultInitial)
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err := fn(actx, attempt)
		cancel()
		if err == nil {
			return nil
		}

		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return &Error{Attempts: attempt, Err: lastErr}
		}

		wait := delay.Next()
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return &Error{Attempts: attempt, Err: lastErr}
		}
		if err := sleep(ctx, wait); err != nil {
			return &Error{Attempts: attempt, Err: lastErr}
		}
	}
}
