package testutil

import (
	"sync"
	"time"
)

// TickClock is a deterministic time source for tests.
//
// Each call to Now returns the current instant and advances the clock by
// a fixed step, so recorded timestamps are strictly increasing and
// byte-identical across runs (golden file comparison relies on this).
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type TickClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewTickClock creates a clock starting at start, advancing by step per
// Now call.
func NewTickClock(start time.Time, step time.Duration) *TickClock {
	return &TickClock{now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *TickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset rewinds the clock to start for test reuse.
func (c *TickClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
