// Package pace drives the capture-compose-encode loop at a target frame
// rate using a wall-clock-anchored scheduler.
package pace

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so tests can drive the scheduler.
type Clock interface {
	Now() time.Time
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// TickFunc receives the tick's scheduled time and its index since start.
// Indices are strictly increasing but not contiguous: ticks missed while
// the host throttled the process are skipped, never delivered in a burst.
type TickFunc func(at time.Time, index int64)

// Ticker fires TickFunc at a fixed cadence anchored to the start time.
// Each tick re-arms against the anchor rather than the previous wakeup, so
// scheduling delay does not accumulate into drift, and the loop re-arms
// regardless of how long the previous tick's work took.
type Ticker struct {
	interval time.Duration
	clock    Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTicker creates a ticker for the given frame interval. Interval must
// be positive; like time.NewTicker, a non-positive interval panics.
func NewTicker(interval time.Duration, clock Clock) *Ticker {
	if interval <= 0 {
		panic("pace: non-positive interval for NewTicker")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Ticker{interval: interval, clock: clock}
}

// Start begins ticking and invokes fn on an internal goroutine. Calling
// Start on a running ticker is a no-op.
func (t *Ticker) Start(fn TickFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	done := make(chan struct{})
	t.done = done

	go t.run(ctx, fn, done)
}

// Stop halts the ticker and waits for the loop goroutine to exit. Safe to
// call multiple times and on a never-started ticker.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *Ticker) run(ctx context.Context, fn TickFunc, done chan struct{}) {
	defer close(done)

	anchor := t.clock.Now()
	var next int64 = 1

	for {
		target := anchor.Add(time.Duration(next) * t.interval)
		wait := target.Sub(t.clock.Now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(wait):
		}

		fn(target, next)

		// Jump past any boundaries that elapsed while we were asleep or
		// while fn ran; a backgrounded process catches up by skipping.
		now := t.clock.Now()
		next++
		if elapsed := int64(now.Sub(anchor) / t.interval); elapsed >= next {
			next = elapsed + 1
		}
	}
}
