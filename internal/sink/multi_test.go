package sink

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/model"
)

// fakeSink counts calls and fails on demand.
type fakeSink struct {
	name     string
	persists int
	fail     error
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Persist(context.Context, []*model.LogEvent) error {
	f.persists++
	return f.fail
}
func (f *fakeSink) Ping(context.Context) error { return f.fail }
func (f *fakeSink) Close() error               { return nil }

// TestMultiSink_PersistAll 验证批次到达每个后端 / verifies the batch reaches every
// backend.
func TestMultiSink_PersistAll(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	m := NewMultiSink(a, b)

	require.NoError(t, m.Persist(context.Background(), []*model.LogEvent{eventN(1)}))
	assert.Equal(t, 1, a.persists)
	assert.Equal(t, 1, b.persists)
	assert.Equal(t, "multi(a,b)", m.Name())
}

// TestMultiSink_FirstErrorWins 验证失败不阻止其余后端写入 / verifies a failure does
// not stop the other backends.
func TestMultiSink_FirstErrorWins(t *testing.T) {
	boom := fmt.Errorf("disk full")
	a := &fakeSink{name: "a", fail: boom}
	b := &fakeSink{name: "b"}
	m := NewMultiSink(a, b)

	err := m.Persist(context.Background(), []*model.LogEvent{eventN(1)})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.persists)
	assert.Equal(t, 1, b.persists)
}

// TestMultiSink_SingleUnwrapped 单个后端不包装 / a single backend is returned as-is.
func TestMultiSink_SingleUnwrapped(t *testing.T) {
	a := &fakeSink{name: "a"}
	assert.Same(t, Sink(a), NewMultiSink(a))
}
