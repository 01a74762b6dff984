package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time of tick 0 on a DeterministicClock.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Tick is the wall-time distance between consecutive ticks.
const Tick = time.Second

// DeterministicClock provides a thread-safe monotonic clock for tests.
//
// Every call to Now() advances one tick and returns Epoch + seq*Tick, so
// contacts created in sequence get strictly increasing created_at values
// and identical runs produce identical timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1; the first call to Now() returns
// Epoch + 1 tick.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Now advances one tick and returns its wall time.
// Implements store.Clock.
func (c *DeterministicClock) Now() time.Time {
	return At(c.Next())
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Advance skips n ticks without returning them.
// Scenario setup uses this to leave room for explicitly timed fixtures.
func (c *DeterministicClock) Advance(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq += n
}

// Reset resets the clock to 0.
//
// Used for test reuse. After Reset(), the next call to Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// At returns the wall time of tick seq.
func At(seq int64) time.Time {
	return Epoch.Add(time.Duration(seq) * Tick)
}
