package sink

import (
	"context"
	"strings"

	"github.com/logward/logward/internal/model"
)

// MultiSink fans one batch out to several sinks. Every sink sees the batch;
// the first error is returned so the batch stays unacknowledged. Since
// persistence is idempotent per sink, replaying into an already-written sink
// is harmless.
// MultiSink 将一个批次扇出到多个持久化后端。每个后端都会收到批次；返回第一个
// 错误以保持批次未确认。各后端持久化幂等，重放已写入的后端无害。
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink wraps the given sinks. A single sink is returned unwrapped.
func NewMultiSink(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

func (m *MultiSink) Persist(ctx context.Context, events []*model.LogEvent) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Persist(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Ping(ctx context.Context) error {
	for _, s := range m.sinks {
		if err := s.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
