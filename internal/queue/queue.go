// Package queue provides the ingestion buffer between log producers and the
// consumer worker. Two backends share one contract: a bounded in-memory FIFO
// (at-most-once) and a durable append-only stream with consumer groups
// (at-least-once).
// queue 包提供日志生产者与消费 worker 之间的采集缓冲。两种后端共享同一契约：
// 有界内存 FIFO（至多一次）和带消费者组的持久化追加流（至少一次）。
package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/logward/logward/internal/model"
)

// Delivery is one dequeued record together with its acknowledgement handle.
// The handle is backend-opaque: a stream entry ID, or empty for the bounded
// backend.
// Delivery 是一条已出队的记录及其确认句柄。句柄对后端不透明：
// 流条目 ID，有界后端为空。
type Delivery struct {
	Handle string
	Raw    model.RawRecord
}

// Stats exposes the monotonic pipeline counters of a queue backend.
// Stats 暴露队列后端的单调计数器。
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Delivered uint64 `json:"delivered"`
	Acked     uint64 `json:"acked"`
	Dropped   uint64 `json:"dropped"`
	Depth     int    `json:"depth"`
}

// Queue is the ingestion buffer contract shared by all backends.
// Queue 是所有后端共享的采集缓冲契约。
type Queue interface {
	// Enqueue appends one raw record. Returns false when the record was
	// rejected (full bounded queue or closed backend).
	Enqueue(raw model.RawRecord) bool

	// DequeueBatch blocks up to blockTimeout for the first record, then
	// drains up to maxCount records without further blocking. Returns an
	// empty batch on timeout or context cancellation.
	DequeueBatch(ctx context.Context, maxCount int, blockTimeout time.Duration) []Delivery

	// Acknowledge marks the given deliveries as fully processed.
	// No-op redelivery-wise on the bounded backend.
	Acknowledge(handles []string)

	// Stats returns a snapshot of the counters.
	Stats() Stats

	// Close shuts the backend down. Enqueue fails afterwards; remaining
	// records stay readable for draining.
	Close() error
}

// Reclaimer is the optional crash-recovery surface of stream-backed queues.
// Reclaimer 是流后端队列的可选崩溃恢复接口。
type Reclaimer interface {
	// ReclaimStale reassigns entries pending longer than minIdle to the
	// calling consumer and returns them for reprocessing.
	ReclaimStale(ctx context.Context, minIdle time.Duration, maxCount int) []Delivery
}

// RecentProvider serves the last n records seen by the backend, oldest first,
// for late-joining observers.
// RecentProvider 为后来的观察者提供后端最近的 n 条记录，按从旧到新排序。
type RecentProvider interface {
	Recent(n int) []model.RawRecord
}

// PendingInfo describes one delivered-but-unacknowledged stream entry.
// PendingInfo 描述一条已投递但未确认的流条目。
type PendingInfo struct {
	ID            string        `json:"id"`
	Consumer      string        `json:"consumer"`
	Idle          time.Duration `json:"idle"`
	DeliveryCount int           `json:"delivery_count"`
}

// GroupInfo summarizes one consumer group.
type GroupInfo struct {
	Name          string `json:"name"`
	Pending       int    `json:"pending"`
	LastDelivered string `json:"last_delivered"`
}

// StreamInfo summarizes a durable stream for the observability surfaces.
// StreamInfo 为可观测性接口汇总持久化流的状态。
type StreamInfo struct {
	Name    string      `json:"name"`
	Length  int         `json:"length"`
	MaxLen  int         `json:"max_len"`
	FirstID string      `json:"first_id"`
	LastID  string      `json:"last_id"`
	Groups  []GroupInfo `json:"groups"`
}

// DeriveConsumerName builds a per-process consumer identity when none is
// configured.
// DeriveConsumerName 在未配置时构造每进程的消费者身份。
func DeriveConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "logward"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
