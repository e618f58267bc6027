package testutil

import "time"

// Clock hands out strictly increasing timestamps so createdAt order follows
// call order in tests.
type Clock struct {
	now  time.Time
	step time.Duration
}

// NewClock starts at start and advances by step on every Next.
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Next returns the current instant and advances the clock.
func (c *Clock) Next() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
