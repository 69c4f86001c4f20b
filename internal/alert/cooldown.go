package alert

import (
	"sync"
	"time"
)

// pruneThreshold triggers a sweep of expired entries. Recurring-message keys
// are open-ended, so the map needs an occasional cleanup.
// pruneThreshold 触发过期条目清扫。重复消息键是开放式的，map 需要定期清理。
const pruneThreshold = 1024

// Cooldown suppresses repeat firings of the same rule instance inside a
// fixed window. Safe for concurrent use.
// Cooldown 在固定窗口内抑制同一规则实例的重复触发。并发安全。
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewCooldown builds a cooldown store. Non-positive windows fall back to
// five minutes.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Cooldown{window: window, last: make(map[string]time.Time)}
}

// Allow reports whether the keyed rule instance may fire at now, recording
// the firing when it may.
// Allow 报告该键对应的规则实例此刻是否允许触发，允许时记录触发时间。
func (c *Cooldown) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fired, ok := c.last[key]; ok && now.Sub(fired) < c.window {
		return false
	}
	c.last[key] = now
	if len(c.last) > pruneThreshold {
		c.pruneLocked(now)
	}
	return true
}

func (c *Cooldown) pruneLocked(now time.Time) {
	for key, fired := range c.last {
		if now.Sub(fired) >= c.window {
			delete(c.last, key)
		}
	}
}
