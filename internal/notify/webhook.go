package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/internal/version"
	"github.com/logward/logward/pkg/errors"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultWebhookWorkers = 3
	defaultWebhookQueue   = 100
)

// WebhookEnvelope is the JSON payload POSTed to the endpoint.
// WebhookEnvelope 是 POST 到端点的 JSON 负载。
type WebhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion lets consumers detect breaking changes.
	SchemaVersion string `json:"schema_version"`
	// Timestamp is the RFC3339 time the notification was queued.
	Timestamp string `json:"timestamp"`
	// Alert carries the full alert payload.
	Alert model.Alert `json:"alert"`
}

// webhookWork is the unit handed to the delivery workers.
type webhookWork struct {
	ctx      context.Context
	envelope WebhookEnvelope
}

// WebhookNotifier delivers alerts through a pool of background workers with
// a bounded hand-off queue. Send never blocks: a full queue drops the alert.
// WebhookNotifier 通过后台 worker 池与有界交接队列投递告警。Send 绝不阻塞：
// 队列满时丢弃告警。
type WebhookNotifier struct {
	client  *http.Client
	url     string
	workers int
	retries int
	sendCh  chan webhookWork
	wg      sync.WaitGroup
}

// NewWebhookNotifier builds the notifier. The URL must be a valid http(s)
// endpoint.
func NewWebhookNotifier(cfg config.WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: webhook url missing", errors.ErrNotifierDisabled)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWebhookWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultWebhookQueue
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &WebhookNotifier{
		client:  &http.Client{Timeout: config.ParseDurationOr(cfg.Timeout, defaultWebhookTimeout)},
		url:     cfg.URL,
		workers: workers,
		retries: retries,
		sendCh:  make(chan webhookWork, queueSize),
	}, nil
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Start launches the delivery workers. Call before the first Send.
func (w *WebhookNotifier) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
	logger.Get(nil).Infof("🚀 Webhook notifier started: url=%s workers=%d", RedactURL(w.url), w.workers)
}

// Close waits for the workers to finish draining queued alerts. Call after
// the context passed to Start is canceled.
func (w *WebhookNotifier) Close() {
	w.wg.Wait()
}

// Send queues the alert for asynchronous delivery. False means the queue was
// full and the alert was dropped.
// Send 将告警排入队列异步投递。返回 false 表示队列已满且告警被丢弃。
func (w *WebhookNotifier) Send(ctx context.Context, alert model.Alert) bool {
	work := webhookWork{
		ctx: ctx,
		envelope: WebhookEnvelope{
			Type:          "logward.alert",
			SchemaVersion: "1",
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Alert:         alert,
		},
	}
	select {
	case w.sendCh <- work:
		return true
	default:
		metrics.NotifyFailures.WithLabelValues(w.Name()).Inc()
		logger.Get(nil).Warnf("⚠️ Webhook queue full, dropping alert %s", alert.Rule)
		return false
	}
}

// worker drains the queue. On context cancellation it delivers the remaining
// buffered alerts with fresh timeouts before exiting.
// worker 消费队列。context 取消后，先用新的超时投递剩余缓冲告警再退出。
func (w *WebhookNotifier) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case work := <-w.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
					if err := w.deliver(drainCtx, work.envelope); err != nil {
						metrics.NotifyFailures.WithLabelValues(w.Name()).Inc()
						logger.Get(nil).Warnf("⚠️ Webhook delivery failed during shutdown drain: %v", err)
					}
					cancel()
				default:
					return
				}
			}
		case work := <-w.sendCh:
			if err := w.deliver(work.ctx, work.envelope); err != nil {
				metrics.NotifyFailures.WithLabelValues(w.Name()).Inc()
				logger.Get(nil).Warnf("⚠️ Webhook delivery failed: url=%s err=%v", RedactURL(w.url), err)
			}
		}
	}
}

// deliver POSTs the envelope, retrying transient failures with linear
// backoff.
func (w *WebhookNotifier) deliver(ctx context.Context, envelope WebhookEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return fmt.Errorf("canceled during backoff: %w", ctx.Err())
			}
		}
		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		logger.Get(nil).Debugf("Webhook transient failure, attempt %d/%d: %v", attempt+1, w.retries+1, lastErr)
	}
	return fmt.Errorf("webhook send failed after %d attempts: %w", w.retries+1, lastErr)
}

// post executes a single HTTP POST.
func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "logward/"+version.Version)

	resp, err := w.client.Do(req)
	if err != nil {
		return &webhookError{err: err, retryable: true}
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &webhookError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500,
	}
}

// webhookError wraps an error with a retryable flag.
type webhookError struct {
	err       error
	retryable bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

// isRetryable reports whether the failure is transient. Unknown errors
// (connection refused, DNS) count as transient.
func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	return true
}
