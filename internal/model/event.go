package model

import "time"

// RawRecord is a loosely-typed log record as received at the ingress
// boundary. Weak typing stops here: enrichment converts every RawRecord
// into a LogEvent and nothing downstream touches the map again.
// RawRecord 是入口边界接收到的弱类型日志记录。弱类型到此为止：富化将每条
// RawRecord 转换为 LogEvent，下游不再接触该 map。
type RawRecord map[string]any

// String returns the value under key if it is a string, else "".
// String 返回 key 下的字符串值，否则返回 ""。
func (r RawRecord) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// StringOr returns the string under key or the fallback when absent or
// not a string.
// StringOr 返回 key 下的字符串，缺失或非字符串时返回兜底值。
func (r RawRecord) StringOr(key, fallback string) string {
	if s := r.String(key); s != "" {
		return s
	}
	return fallback
}

// LogEvent is the canonical unit moving through the pipeline. Created once
// by the enricher and immutable afterwards, except Annotation which may be
// attached before the event leaves the worker.
// LogEvent 是流经管线的规范化单元。由富化器创建一次，之后不可变，唯有
// Annotation 可以在事件离开 worker 前附加。
type LogEvent struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       Level          `json:"level"`
	Message     string         `json:"message"`
	Service     string         `json:"service"`
	Source      string         `json:"source"`
	Environment string         `json:"environment"`
	Host        string         `json:"host"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ErrorType   ErrorType      `json:"error_type,omitempty"`
	StackTrace  string         `json:"stack_trace,omitempty"`
	Annotation  *Annotation    `json:"ai_analysis,omitempty"`
}

// Annotation is the structured result of the external AI analysis of an
// error event. Its absence never blocks the pipeline.
// Annotation 是对错误事件进行外部 AI 分析的结构化结果。缺失时绝不阻塞管线。
type Annotation struct {
	ErrorType   string `json:"error_type"`
	Severity    string `json:"severity"`
	Summary     string `json:"summary"`
	LikelyCause string `json:"likely_cause"`
	QuickFix    string `json:"quick_fix"`
}
