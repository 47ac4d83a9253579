package pru

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for the cores. The real cores pace busy-wait loops on
// a hardware cycle counter; here the same deadlines are expressed through a
// Clock so tests can drive them deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until the context is canceled.
	Sleep(ctx context.Context, d time.Duration) error

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall-clock implementation used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// deadlineTimer tracks an absolute expiry against a Clock. It replaces the
// cycle-counter delta checks of the hardware loops.
type deadlineTimer struct {
	clock    Clock
	deadline time.Time
}

func newDeadlineTimer(clock Clock, d time.Duration) *deadlineTimer {
	return &deadlineTimer{clock: clock, deadline: clock.Now().Add(d)}
}

func (t *deadlineTimer) expired() bool {
	return !t.clock.Now().Before(t.deadline)
}

// FakeClock is a manually advanced Clock for deterministic tests. Sleep
// returns when Advance moves the clock past the sleep deadline.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFakeClock returns a FakeClock starting at an arbitrary fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(1700000000, 0)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-c.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := fakeWaiter{deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- c.now
		return w.ch
	}

	c.waiters = append(c.waiters, w)

	return w.ch
}

// Advance moves the clock forward and wakes every sleeper whose deadline has
// passed.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.now.Before(w.deadline) {
			w.ch <- c.now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

// Sleepers returns the number of timers waiting for an Advance.
func (c *FakeClock) Sleepers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}
