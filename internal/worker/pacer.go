package worker

import (
	"context"
	"time"
)

// Pacer spaces consecutive sends of one campaign run
type Pacer interface {
	// Wait blocks until the next send may start or ctx is done
	Wait(ctx context.Context) error
}

// IntervalPacer waits a fixed interval between sends
type IntervalPacer struct {
	interval time.Duration
}

// NewIntervalPacer creates a pacer with the given interval. A zero interval
// never blocks.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{interval: interval}
}

// Interval returns the configured delay
func (p *IntervalPacer) Interval() time.Duration {
	return p.interval
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
