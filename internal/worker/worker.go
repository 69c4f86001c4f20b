// Package worker drives the consume side of the pipeline: fetch a batch,
// enrich every record, persist, fan out, evaluate alerts, acknowledge. The
// acknowledgement is strictly ordered after a successful persist, so durable
// backends redeliver anything a crashed or failing worker left behind.
// worker 包驱动管线的消费侧：取批、逐条富化、落盘、扇出、评估告警、确认。
// 确认严格排在落盘成功之后，持久化后端会重投崩溃或失败 worker 留下的记录。
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/logward/logward/internal/alert"
	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/enrich"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/sink"
	"github.com/logward/logward/internal/utils/logger"
)

// State is the worker's loop phase, exposed for the stats surfaces.
// State 是 worker 的循环阶段，暴露给统计接口。
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateFlushing   State = "flushing"
	StateDraining   State = "draining"
)

// Broadcaster receives every successfully persisted event, best effort.
type Broadcaster interface {
	Publish(event *model.LogEvent)
}

// Counters is a snapshot of the worker's lifetime totals.
type Counters struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Batches   uint64 `json:"batches"`
	Alerts    uint64 `json:"alerts"`
}

// Options wires the worker's collaborators. Queue, Enricher and Sink are
// required; the rest may be nil.
// Options 装配 worker 的协作者。Queue、Enricher 与 Sink 必填，其余可为 nil。
type Options struct {
	Queue    queue.Queue
	Enricher *enrich.Enricher
	Sink     sink.Sink
	Alerts   *alert.Engine
	Notifier notify.Notifier
	Hub      Broadcaster
	Config   config.WorkerConfig
	// MinIdle is the pending age before stale deliveries are reclaimed.
	MinIdle time.Duration
	// Name identifies this worker in logs; derived when empty.
	Name string
}

// Worker is one consumer loop instance. Run several with distinct names in
// the same consumer group to scale out on a stream backend.
// Worker 是一个消费循环实例。在同一消费者组内以不同名字运行多个即可在
// 流后端上水平扩展。
type Worker struct {
	queue    queue.Queue
	enricher *enrich.Enricher
	sink     sink.Sink
	alerts   *alert.Engine
	notifier notify.Notifier
	hub      Broadcaster
	name     string

	batchSize       int
	blockTimeout    time.Duration
	idleSleep       time.Duration
	errorBackoff    time.Duration
	reclaimInterval time.Duration
	minIdle         time.Duration

	state       atomic.Value
	processed   atomic.Uint64
	failed      atomic.Uint64
	batches     atomic.Uint64
	alertsFired atomic.Uint64
	lastReclaim time.Time
}

// New builds a worker with defaults filled in for missing tuning values.
func New(opts Options) *Worker {
	batchSize := opts.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	name := opts.Name
	if name == "" {
		name = queue.DeriveConsumerName()
	}
	minIdle := opts.MinIdle
	if minIdle <= 0 {
		minIdle = time.Minute
	}
	w := &Worker{
		queue:           opts.Queue,
		enricher:        opts.Enricher,
		sink:            opts.Sink,
		alerts:          opts.Alerts,
		notifier:        opts.Notifier,
		hub:             opts.Hub,
		name:            name,
		batchSize:       batchSize,
		blockTimeout:    config.ParseDurationOr(opts.Config.BlockTimeout, time.Second),
		idleSleep:       config.ParseDurationOr(opts.Config.IdleSleep, 100*time.Millisecond),
		errorBackoff:    config.ParseDurationOr(opts.Config.ErrorBackoff, 5*time.Second),
		reclaimInterval: config.ParseDurationOr(opts.Config.ReclaimInterval, 30*time.Second),
		minIdle:         minIdle,
		lastReclaim:     time.Now(),
	}
	w.state.Store(StateIdle)
	return w
}

// Name returns the worker's consumer identity.
func (w *Worker) Name() string { return w.name }

// State returns the current loop phase.
func (w *Worker) State() State {
	return w.state.Load().(State)
}

// Counters returns a snapshot of the lifetime totals.
func (w *Worker) Counters() Counters {
	return Counters{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Batches:   w.batches.Load(),
		Alerts:    w.alertsFired.Load(),
	}
}

// Run executes the consume loop until ctx is canceled. An in-flight batch is
// always drained fully (persist, publish, alert, acknowledge) before Run
// returns.
// Run 执行消费循环直到 ctx 取消。返回前始终完整排空在途批次（落盘、广播、
// 告警、确认）。
func (w *Worker) Run(ctx context.Context) {
	log := logger.Get(nil)
	log.Infof("🚀 Worker %s started: batch_size=%d block_timeout=%s", w.name, w.batchSize, w.blockTimeout)

	defer func() {
		w.state.Store(StateDraining)
		c := w.Counters()
		log.Infof("🛑 Worker %s stopped: processed=%d failed=%d batches=%d alerts=%d",
			w.name, c.Processed, c.Failed, c.Batches, c.Alerts)
	}()

	for ctx.Err() == nil {
		w.state.Store(StateFetching)
		batch := w.fetch(ctx)
		if len(batch) == 0 {
			if ctx.Err() != nil {
				return
			}
			w.state.Store(StateIdle)
			w.sleep(ctx, w.idleSleep)
			continue
		}

		// the batch completes even when ctx is canceled mid-flight
		bctx := context.WithoutCancel(ctx)
		start := time.Now()
		events, handles := w.process(bctx, batch)
		if err := w.flush(bctx, events, handles); err != nil {
			log.Errorf("❌ Batch flush failed, withholding ack for %d records: %v", len(handles), err)
			metrics.ProcessingFailures.WithLabelValues("flush").Inc()
			w.sleep(ctx, w.errorBackoff)
			continue
		}
		metrics.BatchSeconds.Observe(time.Since(start).Seconds())
		w.sleep(ctx, w.idleSleep)
	}
}

// fetch pulls the next batch, prepending stale deliveries reclaimed from
// crashed consumers when the backend supports it.
// fetch 拉取下一批，后端支持时先前置从崩溃消费者回收的滞留投递。
func (w *Worker) fetch(ctx context.Context) []queue.Delivery {
	var batch []queue.Delivery
	if rc, ok := w.queue.(queue.Reclaimer); ok && time.Since(w.lastReclaim) >= w.reclaimInterval {
		w.lastReclaim = time.Now()
		if reclaimed := rc.ReclaimStale(ctx, w.minIdle, w.batchSize); len(reclaimed) > 0 {
			logger.Get(nil).Infof("🔄 Reclaimed %d stale deliveries", len(reclaimed))
			batch = reclaimed
		}
	}

	remaining := w.batchSize - len(batch)
	if remaining <= 0 {
		return batch
	}
	blockTimeout := w.blockTimeout
	if len(batch) > 0 {
		blockTimeout = 0
	}
	return append(batch, w.queue.DequeueBatch(ctx, remaining, blockTimeout)...)
}

// process enriches every record. A panicking record is counted, logged and
// dropped; its handle is still acknowledged so a poison record cannot wedge
// the stream.
// process 逐条富化。触发 panic 的记录会被计数、记录日志并丢弃；其句柄仍会
// 确认，避免毒性记录卡死流。
func (w *Worker) process(ctx context.Context, batch []queue.Delivery) ([]*model.LogEvent, []string) {
	w.state.Store(StateProcessing)
	events := make([]*model.LogEvent, 0, len(batch))
	handles := make([]string, 0, len(batch))

	for _, d := range batch {
		handles = append(handles, d.Handle)
		if ev := w.processOne(ctx, d); ev != nil {
			events = append(events, ev)
			w.processed.Add(1)
			metrics.ProcessedTotal.Inc()
		} else {
			w.failed.Add(1)
			metrics.ProcessingFailures.WithLabelValues("panic").Inc()
		}
	}
	return events, handles
}

func (w *Worker) processOne(ctx context.Context, d queue.Delivery) (ev *model.LogEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get(nil).Errorf("❌ Panic while processing record (handle=%q): %v", d.Handle, r)
			ev = nil
		}
	}()
	return w.enricher.Process(ctx, d.Raw)
}

// flush persists the batch, then fans out, evaluates alerts and finally
// acknowledges. A persist error leaves every handle unacknowledged.
// flush 先落盘，再扇出、评估告警，最后确认。落盘失败时所有句柄保持未确认。
func (w *Worker) flush(ctx context.Context, events []*model.LogEvent, handles []string) error {
	w.state.Store(StateFlushing)
	if len(handles) == 0 {
		return nil
	}
	if len(events) > 0 {
		if err := w.sink.Persist(ctx, events); err != nil {
			return err
		}
	}

	if w.hub != nil {
		for _, ev := range events {
			w.hub.Publish(ev)
		}
	}
	if w.alerts != nil {
		for _, a := range w.alerts.Evaluate(events) {
			w.alertsFired.Add(1)
			logger.Get(nil).Warnf("⚠️ Alert fired: %s (%s, count=%d)", a.Rule, a.Title, a.Count)
			if w.notifier != nil {
				w.notifier.Send(ctx, *a)
			}
		}
	}

	w.queue.Acknowledge(handles)
	w.batches.Add(1)
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
