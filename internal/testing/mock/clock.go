package mock

import (
	"sync"
	"time"
)

// Clock is a clock that only moves when told to. It satisfies the Clock
// interfaces of the engine and the executor's now function.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock returns a clock stopped at t, or at the current time if t is zero.
func NewClock(t time.Time) *Clock {
	if t.IsZero() {
		t = time.Now()
	}
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
