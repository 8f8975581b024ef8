package app

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer blocks between consecutive sends.
type Pacer interface {
	Pause(ctx context.Context) error
}

// RandomPacer waits a uniformly random duration in [Min, Max].
type RandomPacer struct {
	Min, Max time.Duration
}

func (p RandomPacer) Pause(ctx context.Context) error {
	d := p.Min
	if p.Max > p.Min {
		d += time.Duration(rand.Int64N(int64(p.Max-p.Min) + 1))
	}
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

// NoPause never waits.
type NoPause struct{}

func (NoPause) Pause(ctx context.Context) error { return ctx.Err() }
