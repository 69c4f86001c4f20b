package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logward/logward/internal/model"
)

// BoundedQueue is a fixed-capacity in-memory FIFO over a buffered channel.
// Enqueue never blocks: a full queue rejects the record and counts it as
// dropped. There is no redelivery, so delivery is at-most-once.
// BoundedQueue 是基于缓冲通道的固定容量内存 FIFO。Enqueue 从不阻塞：
// 队列满时拒绝记录并计入丢弃。没有重投递，因此投递语义为至多一次。
type BoundedQueue struct {
	ch chan model.RawRecord

	// closeMu orders Enqueue sends against channel close.
	closeMu sync.RWMutex
	closed  bool

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	acked     atomic.Uint64
	dropped   atomic.Uint64

	ringMu sync.Mutex
	ring   *recentRing
}

// NewBoundedQueue creates a queue holding at most capacity records, keeping
// the last recentSize delivered records for Recent.
// NewBoundedQueue 创建最多容纳 capacity 条记录的队列，并为 Recent 保留
// 最近 recentSize 条已投递记录。
func NewBoundedQueue(capacity, recentSize int) *BoundedQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue{
		ch:   make(chan model.RawRecord, capacity),
		ring: newRecentRing(recentSize),
	}
}

// Enqueue appends raw. Returns false when the queue is full or closed.
func (q *BoundedQueue) Enqueue(raw model.RawRecord) bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return false
	}

	select {
	case q.ch <- raw:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// DequeueBatch blocks up to blockTimeout for the first record, then drains up
// to maxCount without blocking. After Close the remaining buffer drains
// without waiting.
func (q *BoundedQueue) DequeueBatch(ctx context.Context, maxCount int, blockTimeout time.Duration) []Delivery {
	if maxCount <= 0 {
		return nil
	}

	var first model.RawRecord
	var ok bool

	if blockTimeout > 0 {
		timer := time.NewTimer(blockTimeout)
		defer timer.Stop()
		select {
		case first, ok = <-q.ch:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		}
	} else {
		select {
		case first, ok = <-q.ch:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}

	batch := make([]Delivery, 0, maxCount)
	batch = append(batch, Delivery{Raw: first})

drain:
	for len(batch) < maxCount {
		select {
		case raw, open := <-q.ch:
			if !open {
				break drain
			}
			batch = append(batch, Delivery{Raw: raw})
		default:
			break drain
		}
	}

	q.delivered.Add(uint64(len(batch)))
	q.ringMu.Lock()
	for _, d := range batch {
		q.ring.push(d.Raw)
	}
	q.ringMu.Unlock()

	return batch
}

// Acknowledge only advances the acked counter; the bounded backend has no
// pending state to clear.
func (q *BoundedQueue) Acknowledge(handles []string) {
	q.acked.Add(uint64(len(handles)))
}

// Stats returns a snapshot of the counters.
func (q *BoundedQueue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Delivered: q.delivered.Load(),
		Acked:     q.acked.Load(),
		Dropped:   q.dropped.Load(),
		Depth:     len(q.ch),
	}
}

// Recent returns up to n of the most recently delivered records, oldest
// first.
func (q *BoundedQueue) Recent(n int) []model.RawRecord {
	q.ringMu.Lock()
	defer q.ringMu.Unlock()
	return q.ring.snapshot(n)
}

// Close rejects further enqueues. Buffered records remain drainable.
func (q *BoundedQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

// recentRing is a fixed-size overwrite-oldest buffer.
type recentRing struct {
	buf  []model.RawRecord
	next int
	full bool
}

func newRecentRing(size int) *recentRing {
	if size <= 0 {
		size = 1
	}
	return &recentRing{buf: make([]model.RawRecord, size)}
}

func (r *recentRing) push(raw model.RawRecord) {
	r.buf[r.next] = raw
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// snapshot returns up to n records, oldest first.
func (r *recentRing) snapshot(n int) []model.RawRecord {
	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	if n == 0 {
		return nil
	}

	out := make([]model.RawRecord, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
