package obs

import (
	"sync/atomic"
)

// CycleCounter numbers recompute cycles so their log lines can be correlated.
type CycleCounter struct {
	last atomic.Uint64
}

// Next returns the next cycle number, starting at 1.
func (c *CycleCounter) Next() uint64 {
	if c == nil {
		return 0
	}
	return c.last.Add(1)
}

// Last returns the most recent cycle number.
func (c *CycleCounter) Last() uint64 {
	if c == nil {
		return 0
	}
	return c.last.Load()
}
