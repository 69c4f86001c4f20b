// Package sink persists processed batches. A Persist error means the batch
// must not be acknowledged upstream; durable backends redeliver it later.
// sink 包负责持久化已处理批次。Persist 出错表示上游不得确认该批次；
// 持久化后端稍后会重投。
package sink

import (
	"context"

	"github.com/logward/logward/internal/model"
)

// Sink is the persistence contract the worker flushes batches into.
// Sink 是 worker 刷写批次的持久化契约。
type Sink interface {
	// Name identifies the backend in logs and health output.
	Name() string

	// Persist writes the whole batch or reports an error. Implementations
	// must be safe to call again with the same events after a failure.
	// Persist 写入整个批次或报告错误。失败后使用相同事件重试必须安全。
	Persist(ctx context.Context, events []*model.LogEvent) error

	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
