// Package clock abstracts time for code that needs to be tested against a controlled clock.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type clock struct{}

// New returns a Clock backed by the system time.
func New() Clock {
	return &clock{}
}

func (c *clock) Now() time.Time {
	return time.Now()
}

// ManagedClock is a hand managed clock. Intended for tests.
type ManagedClock struct {
	startTime time.Time
	offset    time.Duration
}

// NewManaged returns an initialized ManagedClock for use in tests.
func NewManaged(startTime time.Time) *ManagedClock {
	return &ManagedClock{startTime: startTime}
}

// Now returns the current managed time.
func (c *ManagedClock) Now() time.Time {
	return c.startTime.Add(c.offset)
}

// WarpForward moves time forward by the provided offset and returns the new time.
// Time never goes backwards, especially not in tests.
func (c *ManagedClock) WarpForward(offset time.Duration) time.Time {
	c.offset += offset
	return c.startTime.Add(c.offset)
}
