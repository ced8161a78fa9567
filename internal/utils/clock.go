package utils

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// SleepContext waits d on clock. It returns ctx.Err() if ctx is done first.
func SleepContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// FakeClock is the part of clockwork's fake clock RunWithFakeClock drives.
type FakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

// RunWithFakeClock calls fn and, until it returns, advances clock by step
// each time something is waiting on it.
func RunWithFakeClock(clock FakeClock, step time.Duration, fn func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		fn()
	}()

	for clock.BlockUntilContext(ctx, 1) == nil {
		clock.Advance(step)
	}
	<-done
}
