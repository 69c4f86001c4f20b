// Package app wires the pipeline components together and runs them as a
// process: full pipeline (serve), consumer-only (worker) and producer-only
// (tail) entrypoints.
// app 包将管线组件装配起来并作为进程运行：全量管线（serve）、仅消费
// （worker）与仅生产（tail）三种入口。
package app

import (
	"context"
	stderrors "errors"

	"github.com/logward/logward/internal/alert"
	"github.com/logward/logward/internal/annotate"
	"github.com/logward/logward/internal/broadcast"
	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/enrich"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/runtime"
	"github.com/logward/logward/internal/sink"
	"github.com/logward/logward/internal/tailer"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/internal/worker"
	"github.com/logward/logward/pkg/errors"
)

// Pipeline holds every component of a running logward process. Components
// not needed by the chosen entrypoint stay nil.
// Pipeline 持有运行中 logward 进程的全部组件。所选入口不需要的组件保持 nil。
type Pipeline struct {
	Cfg *config.GlobalConfig

	Queue  queue.Queue
	Stream *queue.DurableStream // nil on the bounded backend

	Memory    *sink.MemorySink
	Sink      sink.Sink
	Notifier  notify.Notifier
	Webhook   *notify.WebhookNotifier // needs Start/Close when present
	Annotator *annotate.Client
	Enricher  *enrich.Enricher
	Alerts    *alert.Engine
	Hub       *broadcast.Hub
	Worker    *worker.Worker
	Tailer    *tailer.Tailer
}

// buildQueue constructs the configured queue backend. On the stream backend
// it also returns the underlying stream for introspection surfaces.
// buildQueue 构造配置的队列后端。流后端下同时返回底层流供自省接口使用。
func buildQueue(cfg *config.GlobalConfig) (queue.Queue, *queue.DurableStream, error) {
	switch cfg.Queue.Backend {
	case "stream":
		stream := queue.NewDurableStream(queue.StreamOptions{
			Name:             cfg.Stream.Name,
			MaxLen:           cfg.Stream.MaxLen,
			StatePath:        cfg.Stream.StatePath,
			SnapshotInterval: config.ParseDurationOr(cfg.Stream.SnapshotInterval, 0),
		})
		return stream.Bind(cfg.Stream.Group, consumerName(cfg)), stream, nil
	case "bounded":
		return queue.NewBoundedQueue(cfg.Queue.MaxSize, cfg.Queue.RecentSize), nil, nil
	default:
		return nil, nil, errors.NewConfigError("queue.backend", cfg.Queue.Backend)
	}
}

// consumerName resolves the stream consumer identity: CLI flag, then config,
// then a derived "<hostname>-<pid>".
// consumerName 解析流消费者身份：CLI 标志优先，其次配置，最后派生值。
func consumerName(cfg *config.GlobalConfig) string {
	if runtime.ConsumerName != "" {
		return runtime.ConsumerName
	}
	if cfg.Stream.Consumer != "" {
		return cfg.Stream.Consumer
	}
	return queue.DeriveConsumerName()
}

// buildSink constructs the persistence layer. The memory sink is always
// wired in: it backs the recent/stats views regardless of the durable
// backend. An unreachable OpenSearch aborts startup.
// buildSink 构造持久化层。内存 sink 始终接入：无论持久化后端为何，它都支撑
// 最近/统计视图。OpenSearch 不可达时中止启动。
func buildSink(ctx context.Context, cfg *config.GlobalConfig) (sink.Sink, *sink.MemorySink, error) {
	memory := sink.NewMemorySink(cfg.Queue.RecentSize)

	switch cfg.Sink.Backend {
	case "memory", "":
		return memory, memory, nil
	case "file":
		return sink.NewMultiSink(sink.NewFileSink(cfg.Sink.File), memory), memory, nil
	case "opensearch":
		osSink := sink.NewOpenSearchSink(cfg.Sink.OpenSearch)
		if err := osSink.Ping(ctx); err != nil {
			return nil, nil, errors.NewSinkError("opensearch", err)
		}
		if err := osSink.EnsureTemplate(ctx); err != nil {
			logger.Get(ctx).Warnf("⚠️ Failed to ensure index template: %v", err)
		}
		return sink.NewMultiSink(osSink, memory), memory, nil
	default:
		return nil, nil, errors.NewConfigError("sink.backend", cfg.Sink.Backend)
	}
}

// buildNotifier assembles the enabled alert channels. Channels disabled by
// config or missing credentials are skipped with a log line; nil means no
// channel is active.
// buildNotifier 装配启用的告警通道。被配置禁用或缺少凭据的通道跳过并记日志；
// 返回 nil 表示没有活跃通道。
func buildNotifier(cfg *config.GlobalConfig) (notify.Notifier, *notify.WebhookNotifier) {
	log := logger.Get(nil)
	var notifiers []notify.Notifier
	var webhook *notify.WebhookNotifier

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.Telegram)
		if err != nil {
			log.Warnf("⚠️ Telegram notifier not started: %v", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Notify.Webhook.Enabled {
		wh, err := notify.NewWebhookNotifier(cfg.Notify.Webhook)
		if err != nil {
			log.Warnf("⚠️ Webhook notifier not started: %v", err)
		} else {
			notifiers = append(notifiers, wh)
			webhook = wh
		}
	}

	switch len(notifiers) {
	case 0:
		return nil, nil
	case 1:
		return notifiers[0], webhook
	default:
		return notify.NewMultiNotifier(notifiers...), webhook
	}
}

// buildAnnotator constructs the AI client when configured. A disabled or
// credential-less annotator is not an error: the pipeline runs without it.
// buildAnnotator 在配置时构造 AI 客户端。被禁用或缺少凭据不算错误：
// 管线照常运行。
func buildAnnotator(cfg *config.GlobalConfig) *annotate.Client {
	client, err := annotate.NewClient(cfg.AI)
	if err != nil {
		if !stderrors.Is(err, errors.ErrAnnotatorDisabled) {
			logger.Get(nil).Warnf("⚠️ AI annotator not started: %v", err)
		}
		return nil
	}
	return client
}

// Options selects which components NewPipeline assembles.
type Options struct {
	// Worker enables the consume side (enricher, sink, alerts, notifier,
	// annotator, hub, worker loop).
	Worker bool
	// Tail enables the file-follow producers.
	Tail bool
}

// NewPipeline assembles the components for one process according to opts.
// NewPipeline 按 opts 为一个进程装配组件。
func NewPipeline(ctx context.Context, cfg *config.GlobalConfig, opts Options) (*Pipeline, error) {
	q, stream, err := buildQueue(cfg)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Cfg: cfg, Queue: q, Stream: stream}

	if opts.Worker {
		p.Sink, p.Memory, err = buildSink(ctx, cfg)
		if err != nil {
			_ = q.Close()
			return nil, err
		}

		p.Annotator = buildAnnotator(cfg)
		aiTimeout := config.ParseDurationOr(cfg.AI.Timeout, 0)
		if p.Annotator != nil {
			p.Enricher = enrich.NewEnricher(p.Annotator, aiTimeout)
		} else {
			p.Enricher = enrich.NewEnricher(nil, aiTimeout)
		}

		if cfg.Alerts.Enabled {
			p.Alerts = alert.NewEngine(cfg.Alerts)
		}
		p.Notifier, p.Webhook = buildNotifier(cfg)
		p.Hub = broadcast.NewHub(64)

		p.Worker = worker.New(worker.Options{
			Queue:    p.Queue,
			Enricher: p.Enricher,
			Sink:     p.Sink,
			Alerts:   p.Alerts,
			Notifier: p.Notifier,
			Hub:      p.Hub,
			Config:   cfg.Worker,
			MinIdle:  config.ParseDurationOr(cfg.Stream.MinIdle, 0),
			Name:     consumerName(cfg),
		})
	}

	if opts.Tail && cfg.Tail.Enabled {
		p.Tailer = tailer.New(p.Queue, cfg.Tail)
	}

	return p, nil
}

// QueueStats implements metrics.StatsProvider.
func (p *Pipeline) QueueStats() queue.Stats {
	return p.Queue.Stats()
}

// StreamPending implements metrics.StatsProvider. Zero on the bounded
// backend.
func (p *Pipeline) StreamPending() int {
	if p.Stream == nil {
		return 0
	}
	pending := 0
	for _, g := range p.Stream.Info().Groups {
		pending += g.Pending
	}
	return pending
}

// Close releases every component in reverse dependency order.
// Close 按依赖的逆序释放全部组件。
func (p *Pipeline) Close() {
	log := logger.Get(nil)
	if p.Tailer != nil {
		p.Tailer.Stop()
	}
	if p.Hub != nil {
		p.Hub.Close()
	}
	if p.Notifier != nil {
		p.Notifier.Close()
	}
	if p.Sink != nil {
		if err := p.Sink.Close(); err != nil {
			log.Warnf("⚠️ Sink close failed: %v", err)
		}
	}
	if err := p.Queue.Close(); err != nil {
		log.Warnf("⚠️ Queue close failed: %v", err)
	}
}
