package session

import "sync/atomic"

// Clock numbers journal records. Each journaled event and reconciliation
// takes the next seq, so a session's records sort by seq alone and wall
// time never decides replay order.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first record gets seq 1.
func NewClock() *Clock { return new(Clock) }

// NewClockAt continues numbering after last, for a journal that already
// holds records up to last.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next stamps one record.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the seq of the latest stamped record, 0 before the first.
func (c *Clock) Current() int64 { return c.last.Load() }
