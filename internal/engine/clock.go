package engine

import "sync/atomic"

// Clock is a monotonic logical clock for materialization events.
//
// Every creation and recalculation stamps the affected node with Next(), so
// the relative age of two nodes' edge sets is explicit without consulting
// wall-clock time.
//
// Clock is safe for concurrent use, although Manager itself is not.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
