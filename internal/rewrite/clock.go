package rewrite

import "sync/atomic"

// Sequencer hands out logical sequence numbers. *Clock implements it;
// tests may supply a resettable one.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock stamping rewrites in the order they
// happen. Sequence numbers never depend on wall-clock time, so two runs
// over the same module produce the same numbering.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering across several runs recorded in one store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
