// Package testfixtures chứa các công cụ dùng chung cho test: đồng hồ điều khiển được và
// publisher ghi lại sự kiện.
package testfixtures

import (
	"sync"
	"time"
)

// ReferenceTime là mốc thời gian cố định cho test.
func ReferenceTime() time.Time {
	return time.Date(2024, 9, 2, 15, 30, 0, 0, time.UTC)
}

// Clock provides a controllable time source for tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
