// Package backoff provides a bounded retry-with-backoff primitive.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	DefaultInitial = 500 * time.Millisecond
	DefaultMax     = 10 * time.Second
	DefaultJitter  = 0.2
)

// Backoff implements exponential backoff with jitter. When initial equals max
// the delay is fixed.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
	current time.Duration
}

// New creates a backoff growing from initial to max. jitter is the fraction
// (0 to 1) by which each delay is randomly spread in both directions.
func New(initial, max time.Duration, jitter float64) *Backoff {
	if max < initial {
		max = initial
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{
		initial: initial,
		max:     max,
		jitter:  jitter,
		current: initial,
	}
}

// Fixed creates a backoff that always waits d.
func Fixed(d time.Duration) *Backoff {
	return New(d, d, 0)
}

// Next returns the delay for the next wait and advances the backoff.
func (b *Backoff) Next() time.Duration {
	d := b.current
	if b.jitter > 0 {
		d = time.Duration(float64(d) + float64(d)*b.jitter*(rand.Float64()*2-1))
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Sleep waits for the next delay or until ctx is done.
func (b *Backoff) Sleep(ctx context.Context) error {
	return sleep(ctx, b.Next())
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration without jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
