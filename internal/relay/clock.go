package relay

import (
	"sync"
	"time"
)

// Clock 单调递增的毫秒时间戳
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Next 返回不小于当前时间且严格大于上一次结果的毫秒时间戳
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}
