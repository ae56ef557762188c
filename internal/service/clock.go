package service

import (
	"sync"
	"time"

	"github.com/target/ledgerly/internal/ports"
)

// RealClock implements ports.Clock using system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock implements ports.Clock with a settable time for tests.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

var (
	_ ports.Clock = RealClock{}
	_ ports.Clock = (*FixedClock)(nil)
)

// NewFixedClock creates a FixedClock at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the fixed time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Add advances the clock by d.
func (c *FixedClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
