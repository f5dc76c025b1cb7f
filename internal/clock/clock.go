package clock

import (
	"sync"
	"time"
)

// Clock provides time information for deadline computation.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// Real provides actual system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// Manual is a settable clock for tests. It is safe for concurrent use
// since session watchdogs read it from their own goroutine.
type Manual struct {
	mu      sync.Mutex
	current time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{current: t}
}

// Now returns the test time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}
