// Package testutil provides deterministic time and run-ID sources for
// tests: frozen clocks and sequential identifiers make SyncResults and
// golden reports byte-stable across runs.
package testutil

import (
	"sync"
	"time"
)

// FrozenClock is a wall clock that only moves when told to.
//
// Frozen time makes control attributes (last_sync_at, created_at) and
// result timestamps deterministic, which golden-file comparison requires.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FrozenClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a clock frozen at start.
func NewFrozenClock(start time.Time) *FrozenClock {
	return &FrozenClock{now: start}
}

// Now returns the current frozen time. Pass the method value as the
// reconciler's Clock.
func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FrozenClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
