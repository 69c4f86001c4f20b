package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/runtime"
)

func testConfig(t *testing.T) *config.GlobalConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Queue.Backend = "bounded"
	cfg.Stream.StatePath = filepath.Join(t.TempDir(), "stream.json")
	return cfg
}

// TestBuildQueueBackends verifies the backend selection including the error
// path for unknown names.
// TestBuildQueueBackends 验证后端选择，包括未知名称的错误路径。
func TestBuildQueueBackends(t *testing.T) {
	t.Run("Bounded", func(t *testing.T) {
		cfg := testConfig(t)
		q, stream, err := buildQueue(cfg)
		require.NoError(t, err)
		defer func() { _ = q.Close() }()

		assert.Nil(t, stream)
		_, ok := q.(*queue.BoundedQueue)
		assert.True(t, ok)
	})

	t.Run("Stream", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Queue.Backend = "stream"
		q, stream, err := buildQueue(cfg)
		require.NoError(t, err)
		defer func() { _ = q.Close() }()

		require.NotNil(t, stream)
		sq, ok := q.(*queue.StreamQueue)
		require.True(t, ok)
		assert.Equal(t, cfg.Stream.Group, sq.Group())
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Queue.Backend = "kafka"
		_, _, err := buildQueue(cfg)
		assert.Error(t, err)
	})
}

// TestConsumerNamePrecedence verifies the CLI flag beats the config value,
// which beats the derived hostname-pid identity.
// TestConsumerNamePrecedence 验证 CLI 标志优先于配置值，配置值优先于派生的
// hostname-pid 身份。
func TestConsumerNamePrecedence(t *testing.T) {
	cfg := testConfig(t)

	old := runtime.ConsumerName
	defer func() { runtime.ConsumerName = old }()

	runtime.ConsumerName = "flag-consumer"
	cfg.Stream.Consumer = "config-consumer"
	assert.Equal(t, "flag-consumer", consumerName(cfg))

	runtime.ConsumerName = ""
	assert.Equal(t, "config-consumer", consumerName(cfg))

	cfg.Stream.Consumer = ""
	assert.NotEmpty(t, consumerName(cfg))
}

// TestBuildSinkMemoryAlwaysWired verifies the memory window backs the stats
// surfaces on every backend.
// TestBuildSinkMemoryAlwaysWired 验证内存窗口在任何后端下都支撑统计接口。
func TestBuildSinkMemoryAlwaysWired(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		cfg := testConfig(t)
		s, memory, err := buildSink(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, memory)
		assert.Equal(t, "memory", s.Name())
	})

	t.Run("File", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sink.Backend = "file"
		cfg.Sink.File.Path = filepath.Join(t.TempDir(), "events.ndjson")
		s, memory, err := buildSink(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, memory)
		defer func() { _ = s.Close() }()

		ev := &model.LogEvent{ID: "ev-1", Level: model.LevelInfo, Message: "hello"}
		require.NoError(t, s.Persist(context.Background(), []*model.LogEvent{ev}))
		require.Len(t, memory.Recent(10), 1)

		data, err := os.ReadFile(cfg.Sink.File.Path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"ev-1"`)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sink.Backend = "s3"
		_, _, err := buildSink(context.Background(), cfg)
		assert.Error(t, err)
	})
}

// TestBuildNotifierDisabled verifies disabled channels yield no notifier
// instead of an error.
// TestBuildNotifierDisabled 验证禁用的通道返回 nil 而不是错误。
func TestBuildNotifierDisabled(t *testing.T) {
	cfg := testConfig(t)
	n, wh := buildNotifier(cfg)
	assert.Nil(t, n)
	assert.Nil(t, wh)

	// Enabled but credential-less channels are skipped too
	// 启用但缺少凭据的通道同样被跳过
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Webhook.Enabled = true
	n, wh = buildNotifier(cfg)
	assert.Nil(t, n)
	assert.Nil(t, wh)
}

// TestBuildNotifierWebhook verifies a configured webhook channel comes back
// both as the notifier and as the lifecycle handle.
// TestBuildNotifierWebhook 验证配置的 webhook 通道同时作为通知器和生命周期
// 句柄返回。
func TestBuildNotifierWebhook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Webhook.Enabled = true
	cfg.Notify.Webhook.URL = "http://localhost:9999/hook"

	n, wh := buildNotifier(cfg)
	require.NotNil(t, n)
	require.NotNil(t, wh)
	assert.Equal(t, "webhook", n.Name())

	ctx, cancel := context.WithCancel(context.Background())
	wh.Start(ctx)
	cancel()
	wh.Close()
}

// TestNewPipelineWorkerMode verifies the full consume-side assembly and that
// events flow end to end through the assembled components.
// TestNewPipelineWorkerMode 验证消费侧的完整装配，以及事件能流经装配好的
// 组件。
func TestNewPipelineWorkerMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Backend = "stream"
	cfg.Worker.BlockTimeout = "50ms"
	cfg.Worker.IdleSleep = "10ms"

	p, err := NewPipeline(context.Background(), cfg, Options{Worker: true})
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.Stream)
	require.NotNil(t, p.Worker)
	require.NotNil(t, p.Enricher)
	require.NotNil(t, p.Memory)
	require.NotNil(t, p.Hub)
	assert.Nil(t, p.Notifier)
	assert.Nil(t, p.Tailer)

	require.True(t, p.Queue.Enqueue(model.RawRecord{"message": "boot ok"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.Memory.Total() == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	st := p.QueueStats()
	assert.EqualValues(t, 1, st.Enqueued)
	assert.EqualValues(t, 1, st.Acked)
	assert.Equal(t, 0, p.StreamPending())
}

// TestNewPipelineTailOnly verifies producer-only assembly skips the consume
// side entirely.
// TestNewPipelineTailOnly 验证仅生产装配完全跳过消费侧。
func TestNewPipelineTailOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tail.Enabled = true
	cfg.Tail.Files = []config.TailFile{{Path: filepath.Join(t.TempDir(), "app.log"), Service: "app"}}

	p, err := NewPipeline(context.Background(), cfg, Options{Tail: true})
	require.NoError(t, err)
	defer p.Close()

	assert.NotNil(t, p.Tailer)
	assert.Nil(t, p.Worker)
	assert.Nil(t, p.Sink)
}

// TestStreamPendingCountsUnacked verifies the metrics provider sees
// delivered-unacked entries.
// TestStreamPendingCountsUnacked 验证指标提供者能看到已投递未确认的条目。
func TestStreamPendingCountsUnacked(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Backend = "stream"

	p, err := NewPipeline(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer p.Close()

	require.True(t, p.Queue.Enqueue(model.RawRecord{"message": "one"}))
	batch := p.Queue.DequeueBatch(context.Background(), 10, 100*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, p.StreamPending())

	p.Queue.Acknowledge([]string{batch[0].Handle})
	assert.Equal(t, 0, p.StreamPending())
}
