package ledger

import (
	"sync"
	"time"
)

// Clock supplies the ledger's current time in unix seconds
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock only moves when told to
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by secs seconds
func (c *ManualClock) Advance(secs int64) {
	c.mu.Lock()
	c.now += secs
	c.mu.Unlock()
}
