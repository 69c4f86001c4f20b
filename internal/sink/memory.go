package sink

import (
	"context"
	"sync"

	"github.com/logward/logward/internal/model"
)

// MemorySink keeps the last N events in a ring. It is always wired into the
// pipeline: the recent/stats API views read from it even when a durable
// backend does the real persistence.
// MemorySink 在环形缓冲中保留最近 N 条事件。它始终接入管线：即使由持久化
// 后端负责真正落盘，recent/stats API 视图也从这里读取。
type MemorySink struct {
	mu    sync.RWMutex
	buf   []*model.LogEvent
	next  int
	full  bool
	total uint64
}

// NewMemorySink builds a memory sink retaining capacity events (min 1).
func NewMemorySink(capacity int) *MemorySink {
	if capacity < 1 {
		capacity = 1
	}
	return &MemorySink{buf: make([]*model.LogEvent, capacity)}
}

func (s *MemorySink) Name() string { return "memory" }

// Persist appends the batch to the ring. Never fails.
func (s *MemorySink) Persist(_ context.Context, events []*model.LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		s.buf[s.next] = ev
		s.next = (s.next + 1) % len(s.buf)
		if s.next == 0 {
			s.full = true
		}
		s.total++
	}
	return nil
}

func (s *MemorySink) Ping(context.Context) error { return nil }

func (s *MemorySink) Close() error { return nil }

// Recent returns up to n retained events, newest first.
// Recent 返回最多 n 条保留事件，最新的在前。
func (s *MemorySink) Recent(n int) []*model.LogEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.sizeLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]*model.LogEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.buf)) % len(s.buf)
		out = append(out, s.buf[idx])
	}
	return out
}

// Total returns the number of events persisted over the sink's lifetime.
func (s *MemorySink) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Tallies returns per-level and per-service counts over the retained window.
// Tallies 返回保留窗口内按级别与按服务的计数。
func (s *MemorySink) Tallies() (byLevel map[string]int, byService map[string]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLevel = make(map[string]int)
	byService = make(map[string]int)
	size := s.sizeLocked()
	for i := 1; i <= size; i++ {
		ev := s.buf[(s.next-i+len(s.buf))%len(s.buf)]
		byLevel[string(ev.Level)]++
		byService[ev.Service]++
	}
	return byLevel, byService
}

func (s *MemorySink) sizeLocked() int {
	if s.full {
		return len(s.buf)
	}
	return s.next
}
