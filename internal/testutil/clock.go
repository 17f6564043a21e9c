package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a ManualClock. Fixed so golden
// output does not depend on when tests run.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a wall clock that only moves when told to.
//
// Pass its Now method wherever a func() time.Time is expected
// (session.WithNow, predict.WithClock).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock at start, or at Epoch if start is zero.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start}
}

// Now returns the current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d moves it back.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Since returns the clock time elapsed since t.
func (c *ManualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
