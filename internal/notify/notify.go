// Package notify delivers fired alerts to outbound channels. Delivery is
// best effort: a failed notification is logged and counted, never retried by
// the caller and never blocks the pipeline.
// notify 包将触发的告警投递到出站通道。投递是尽力而为：失败的通知仅记录
// 日志并计数，调用方不重试，也绝不阻塞管线。
package notify

import (
	"context"
	"net/url"

	"github.com/logward/logward/internal/model"
)

// Notifier delivers one alert. Send reports whether delivery (or hand-off to
// an internal queue) succeeded. Implementations may retry internally.
// Notifier 投递一条告警。Send 报告投递（或交付内部队列）是否成功。
// 实现可以在内部重试。
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert model.Alert) bool

	// Close flushes internal queues and releases resources.
	Close()
}

// MultiNotifier fans one alert out to several channels. Delivery counts as
// successful when any channel accepted it.
// MultiNotifier 将一条告警扇出到多个通道。任一通道接受即视为投递成功。
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier wraps the given notifiers. A single notifier is returned
// unwrapped; an empty list yields a notifier that reports every send as
// undelivered.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Name() string { return "multi" }

func (m *MultiNotifier) Send(ctx context.Context, alert model.Alert) bool {
	delivered := false
	for _, n := range m.notifiers {
		if n.Send(ctx, alert) {
			delivered = true
		}
	}
	return delivered
}

func (m *MultiNotifier) Close() {
	for _, n := range m.notifiers {
		n.Close()
	}
}

// RedactURL masks credentials in a URL for safe logging: userinfo passwords
// and every query parameter value.
// RedactURL 为安全日志遮蔽 URL 中的凭据：userinfo 密码与所有查询参数值。
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r, err := url.Parse(redacted)
		if err != nil {
			return redacted
		}
		r.RawQuery = q.Encode()
		return r.String()
	}
	return redacted
}
