package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source shared by services, agents and
// their tests. It only moves when a test moves it.
type Clock struct {
	mu      sync.Mutex
	start   time.Time
	current time.Time
}

// NewClock returns a clock stopped at start. The zero value selects
// ReferenceTime.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{start: start, current: start}
}

// Now returns the instant the clock is stopped at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection as a `func() time.Time`. A nil clock
// falls back to the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps to t. Moving backwards is allowed so tests can model skew.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvanceSeconds is Advance in whole seconds, the unit sessions are synced in.
func (c *Clock) AdvanceSeconds(seconds int) time.Time {
	return c.Advance(time.Duration(seconds) * time.Second)
}

// Elapsed reports how far the clock has moved since construction.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(c.start)
}
