// Package enrich converts raw ingress records into canonical log events.
// Enrichment is total: every record produces an event, with defaults filling
// whatever the producer left out. Error-severity events additionally get
// classified, stack-scanned and, when an annotator is wired, AI-analyzed.
// enrich 包将原始入口记录转换为规范化日志事件。富化是全量的：每条记录都会
// 产出事件，生产者缺失的字段由默认值补齐。错误级别的事件还会被分类、提取
// 堆栈，并在接入注释器时进行 AI 分析。
package enrich

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
)

// Annotator produces an AI analysis for an error event. Implementations must
// honor the context deadline; the enricher treats any failure as advisory.
// Annotator 为错误事件生成 AI 分析。实现必须遵守 context 截止时间；
// 富化器将任何失败视为可忽略的。
type Annotator interface {
	Analyze(ctx context.Context, event *model.LogEvent) (*model.Annotation, error)
}

// Enricher normalizes raw records into LogEvents.
type Enricher struct {
	annotator Annotator
	timeout   time.Duration
}

// NewEnricher builds an enricher. annotator may be nil, in which case error
// events are classified locally but never sent for analysis.
// NewEnricher 构建富化器。annotator 可以为 nil，此时错误事件只做本地分类，
// 不会发送分析请求。
func NewEnricher(annotator Annotator, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{annotator: annotator, timeout: timeout}
}

// Process converts one raw record into a canonical event. It never fails:
// malformed fields fall back to defaults and annotation errors are logged
// and swallowed.
// Process 将一条原始记录转换为规范化事件。它永不失败：畸形字段回落到
// 默认值，注释错误仅记录日志后吞掉。
func (e *Enricher) Process(ctx context.Context, raw model.RawRecord) *model.LogEvent {
	message := raw.String("message")
	if message == "" {
		message = raw.String("msg")
	}

	event := &model.LogEvent{
		ID:          newEventID(),
		Timestamp:   parseTimestamp(raw),
		Level:       parseLevel(raw, message),
		Message:     message,
		Service:     raw.StringOr("service", "unknown"),
		Source:      raw.StringOr("source", "unknown"),
		Environment: raw.StringOr("environment", "production"),
		Host:        raw.StringOr("host", "unknown"),
	}
	if md, ok := raw["metadata"].(map[string]any); ok {
		event.Metadata = md
	}

	if !event.Level.IsError() {
		return event
	}

	event.ErrorType = Classify(event.Message)
	event.StackTrace = ExtractStack(event.Message)
	e.annotate(ctx, event)
	return event
}

// annotate attaches the AI analysis to an error event. Best effort only.
func (e *Enricher) annotate(ctx context.Context, event *model.LogEvent) {
	if e.annotator == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ann, err := e.annotator.Analyze(actx, event)
	if err != nil {
		logger.Get(nil).Warnf("⚠️ AI annotation failed for event %s: %v", event.ID, err)
		return
	}
	event.Annotation = ann
}

// newEventID returns a 32-char lowercase hex identifier.
func newEventID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// parseTimestamp reads the record timestamp from "timestamp" or "@timestamp".
// Strings are tried as RFC3339 then as a naive datetime taken as UTC; numbers
// are epoch seconds or, above 1e12, epoch milliseconds. Anything else means
// ingest time. The result is always UTC.
// parseTimestamp 从 "timestamp" 或 "@timestamp" 读取记录时间戳。字符串先按
// RFC3339 再按无时区格式（视为 UTC）解析；数字按 epoch 秒，超过 1e12 按
// epoch 毫秒。其余情况使用摄取时间。结果恒为 UTC。
func parseTimestamp(raw model.RawRecord) time.Time {
	for _, key := range []string{"timestamp", "@timestamp"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
				return t.UTC()
			}
			if t, err := time.ParseInLocation("2006-01-02T15:04:05", tv, time.UTC); err == nil {
				return t
			}
		case float64:
			return epochTime(tv)
		case int64:
			return epochTime(float64(tv))
		case int:
			return epochTime(float64(tv))
		}
	}
	return time.Now().UTC()
}

// epochTime interprets a numeric timestamp. Values at or above 1e12 cannot be
// a sane epoch-seconds value, so they are taken as milliseconds.
func epochTime(v float64) time.Time {
	if v >= 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// parseLevel resolves the event level: the explicit "level" field first, then
// a scan of the message body, then INFO.
// parseLevel 解析事件级别：先看显式的 "level" 字段，再扫描消息正文，
// 最后回落到 INFO。
func parseLevel(raw model.RawRecord, message string) model.Level {
	if s := raw.String("level"); s != "" {
		if lvl, ok := model.ParseLevel(s); ok {
			return lvl
		}
	}
	if lvl, ok := model.ScanLevel(message); ok {
		return lvl
	}
	return model.LevelInfo
}
