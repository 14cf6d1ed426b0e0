package engine

import (
	"context"
	"time"
)

// Pacer throttles calls to the classifier so batch categorization stays
// under provider rate limits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DefaultClassifierDelay is the pause inserted between consecutive
// classifier calls.
const DefaultClassifierDelay = 200 * time.Millisecond

type fixedDelayPacer struct {
	delay time.Duration
}

// NewFixedDelayPacer returns a Pacer that sleeps for delay on every Wait,
// honoring context cancellation.
func NewFixedDelayPacer(delay time.Duration) Pacer {
	return &fixedDelayPacer{delay: delay}
}

func (p *fixedDelayPacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopPacer struct{}

// NewNopPacer returns a Pacer that never waits.
func NewNopPacer() Pacer {
	return nopPacer{}
}

func (nopPacer) Wait(context.Context) error { return nil }
