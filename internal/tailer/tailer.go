// Package tailer follows configured log files and feeds every line into the
// ingest queue as a raw record. Rotated files are reopened; lines arriving
// while the queue is full are dropped and counted.
// tailer 包跟踪配置的日志文件，把每一行作为原始记录送入摄入队列。轮转的
// 文件会被重新打开；队列满时到达的行会被丢弃并计数。
package tailer

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nxadm/tail"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
)

// Enqueuer accepts raw records on the producer side of the queue.
type Enqueuer interface {
	Enqueue(raw model.RawRecord) bool
}

// Tailer runs one follow goroutine per configured file.
type Tailer struct {
	queue Enqueuer
	cfg   config.TailConfig

	mu       sync.Mutex
	tails    []*tail.Tail
	watched  map[string]bool
	stopping bool
	wg       sync.WaitGroup

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// New builds a tailer over the given queue. Call Start to begin following.
func New(queue Enqueuer, cfg config.TailConfig) *Tailer {
	return &Tailer{
		queue:   queue,
		cfg:     cfg,
		watched: make(map[string]bool),
	}
}

// Start launches a follower for every configured file. Duplicate paths and
// files that cannot be opened are skipped with a log line.
// Start 为每个配置的文件启动跟踪。重复路径与无法打开的文件会跳过并记日志。
func (t *Tailer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	started := 0
	for _, file := range t.cfg.Files {
		if file.Path == "" || t.watched[file.Path] {
			continue
		}
		t.watched[file.Path] = true
		t.wg.Add(1)
		go t.followFile(file)
		started++
	}
	logger.Get(nil).Infof("🚀 Tailing %d files (poll=%v)", started, t.cfg.Poll)
}

func (t *Tailer) followFile(file config.TailFile) {
	defer t.wg.Done()
	log := logger.Get(nil)

	tf, err := tail.TailFile(file.Path, tail.Config{
		Location:  seekInfo(file.Position),
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      t.cfg.Poll,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		log.Errorf("❌ Failed to tail %s: %v", file.Path, err)
		return
	}

	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		tf.Stop()
		return
	}
	t.tails = append(t.tails, tf)
	t.mu.Unlock()

	for line := range tf.Lines {
		if line.Err != nil {
			log.Warnf("⚠️ Read error on %s: %v", file.Path, line.Err)
			continue
		}
		if line.Text == "" {
			continue
		}
		t.lines.Add(1)
		if t.queue.Enqueue(t.record(file, line.Text)) {
			metrics.IngestedTotal.WithLabelValues("tail").Inc()
		} else {
			t.dropped.Add(1)
			metrics.IngestRejectedTotal.Inc()
		}
	}
}

// record converts one line into a raw record. JSON lines become the decoded
// map; anything else becomes a plain message. Per-file labels fill in only
// when the record does not carry its own.
// record 将一行转换为原始记录。JSON 行解码成 map，其余作为纯文本消息。
// 逐文件标签仅在记录自身缺失时补充。
func (t *Tailer) record(file config.TailFile, text string) model.RawRecord {
	var raw model.RawRecord
	if file.JSON {
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err == nil && m != nil {
			raw = m
		}
	}
	if raw == nil {
		raw = model.RawRecord{"message": text}
	}

	if _, ok := raw["service"]; !ok && file.Service != "" {
		raw["service"] = file.Service
	}
	if _, ok := raw["source"]; !ok {
		source := file.Source
		if source == "" {
			source = file.Path
		}
		raw["source"] = source
	}
	return raw
}

// Stop halts every follower and waits for them to exit.
func (t *Tailer) Stop() {
	t.mu.Lock()
	t.stopping = true
	tails := t.tails
	t.tails = nil
	t.mu.Unlock()

	for _, tf := range tails {
		tf.Stop()
	}
	t.wg.Wait()
	logger.Get(nil).Infof("🛑 Tailer stopped: lines=%d dropped=%d", t.lines.Load(), t.dropped.Load())
}

// Lines returns the number of lines read since start.
func (t *Tailer) Lines() uint64 { return t.lines.Load() }

// Dropped returns the number of lines rejected by a full queue.
func (t *Tailer) Dropped() uint64 { return t.dropped.Load() }

func seekInfo(position string) *tail.SeekInfo {
	if position == "start" {
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
	return &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
}
