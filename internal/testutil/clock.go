package testutil

import (
	"sync/atomic"

	"github.com/roach88/cpurt/internal/rewrite"
)

var _ rewrite.Sequencer = (*DeterministicClock)(nil)

// DeterministicClock is a logical clock for tests that can be rewound.
// Reset returns it to its start, so lowering the same module again
// stamps the rewrites with the same seq values.
type DeterministicClock struct {
	start int64
	seq   atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first Next is start+1,
// as if start stamps were already in the run log.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	c := &DeterministicClock{start: start}
	c.seq.Store(start)
	return c
}

func (c *DeterministicClock) Next() int64 {
	return c.seq.Add(1)
}

func (c *DeterministicClock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.seq.Store(c.start)
}
