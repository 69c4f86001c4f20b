// Package broadcast fans processed events out to live subscribers. Publish
// never blocks the pipeline: every subscriber owns a bounded buffer and slow
// consumers lose events instead of slowing the worker down.
// broadcast 包将已处理事件扇出给实时订阅者。Publish 绝不阻塞管线：每个订阅者
// 拥有一个有界缓冲，消费慢的订阅者会丢失事件而不是拖慢 worker。
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
)

// defaultBufferSize is the per-subscriber channel capacity.
const defaultBufferSize = 64

// Subscriber is one registered event consumer. Read from Events until it is
// closed, then call Close (calling Close first is also fine).
type Subscriber struct {
	id  uint64
	ch  chan *model.LogEvent
	hub *Hub
}

// Events returns the subscriber's event channel. The hub closes it on
// Unsubscribe and on hub shutdown.
func (s *Subscriber) Events() <-chan *model.LogEvent {
	return s.ch
}

// Close unregisters the subscriber and closes its channel. Idempotent.
func (s *Subscriber) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

// Hub is the fan-out point between the worker and live watchers.
// Hub 是 worker 与实时观察者之间的扇出点。
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscriber
	nextID  uint64
	closed  bool
	bufSize int
	dropped atomic.Uint64
}

// NewHub builds a hub. Non-positive buffer sizes fall back to the default.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Hub{subs: make(map[uint64]*Subscriber), bufSize: bufSize}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscriber's channel is already closed.
// Subscribe 注册一个新订阅者。hub 已关闭时返回的订阅者通道已经关闭。
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscriber{id: h.nextID, ch: make(chan *model.LogEvent, h.bufSize), hub: h}
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s.id] = s
	return s
}

// Publish delivers the event to every subscriber that has buffer room.
// Full buffers drop the event for that subscriber and bump the counter.
// Publish 将事件投递给所有缓冲有空位的订阅者。缓冲已满则对该订阅者丢弃
// 此事件并累加计数。
func (h *Hub) Publish(event *model.LogEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		select {
		case s.ch <- event:
		default:
			h.dropped.Add(1)
			metrics.BroadcastDropped.Inc()
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the total events dropped across all subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close shuts the hub down, closing every subscriber channel. Subsequent
// Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.subs {
		h.removeLocked(s)
	}
}

// removeLocked unregisters and closes a subscriber exactly once; map
// membership is the guard.
func (h *Hub) removeLocked(s *Subscriber) {
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.ch)
	}
}
