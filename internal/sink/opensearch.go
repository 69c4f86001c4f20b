package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/pkg/errors"
)

// retryBackoff is the linear backoff unit between bulk attempts.
const retryBackoff = 500 * time.Millisecond

// OpenSearchSink bulk-indexes events into daily indices <prefix>-YYYY.MM.DD.
// Document IDs are the event IDs, so a redelivered batch overwrites its
// earlier documents instead of duplicating them.
// OpenSearchSink 将事件批量索引到每日索引 <prefix>-YYYY.MM.DD。文档 ID 即
// 事件 ID，重投的批次会覆盖先前文档而不是产生重复。
type OpenSearchSink struct {
	url         string
	username    string
	password    string
	indexPrefix string
	retries     int
	client      *http.Client
}

// NewOpenSearchSink builds the sink. Retries counts extra bulk attempts
// after the first.
func NewOpenSearchSink(cfg config.OpenSearchConfig) *OpenSearchSink {
	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "logs"
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &OpenSearchSink{
		url:         strings.TrimRight(cfg.URL, "/"),
		username:    cfg.Username,
		password:    cfg.Password,
		indexPrefix: prefix,
		retries:     retries,
		client:      &http.Client{Timeout: config.ParseDurationOr(cfg.Timeout, 10*time.Second)},
	}
}

func (s *OpenSearchSink) Name() string { return "opensearch" }

// EnsureTemplate installs the index template for the daily indices. The PUT
// is idempotent, so calling it on every startup is fine.
// EnsureTemplate 安装每日索引的索引模板。PUT 幂等，每次启动都调用没有问题。
func (s *OpenSearchSink) EnsureTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{s.indexPrefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 1,
			},
			"mappings": map[string]any{
				"properties": map[string]any{
					"timestamp":   map[string]string{"type": "date"},
					"level":       map[string]string{"type": "keyword"},
					"service":     map[string]string{"type": "keyword"},
					"source":      map[string]string{"type": "keyword"},
					"environment": map[string]string{"type": "keyword"},
					"host":        map[string]string{"type": "keyword"},
					"error_type":  map[string]string{"type": "keyword"},
					"message":     map[string]string{"type": "text"},
					"stack_trace": map[string]string{"type": "text"},
				},
			},
		},
	}
	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url+"/_index_template/"+s.indexPrefix, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSinkUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("index template returned status %d: %s", resp.StatusCode, trimForLog(payload))
	}
	return nil
}

// Persist bulk-indexes the batch, retrying transient failures with linear
// backoff. Item-level indexing errors fail the batch without retry.
// Persist 批量索引该批次，对瞬时失败按线性退避重试。条目级索引错误直接
// 判定批次失败，不再重试。
func (s *OpenSearchSink) Persist(ctx context.Context, events []*model.LogEvent) error {
	if len(events) == 0 {
		return nil
	}
	body, err := s.bulkBody(events)
	if err != nil {
		return errors.NewSinkError(s.Name(), err)
	}

	attempts := s.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}
		retryable, err := s.bulk(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
		logger.Get(nil).Warnf("⚠️ OpenSearch bulk attempt %d/%d failed: %v", attempt, attempts, err)
	}
	return errors.NewSinkError(s.Name(), lastErr)
}

// bulk runs one _bulk request. The bool reports whether the failure is worth
// retrying (network errors and 5xx).
func (s *OpenSearchSink) bulk(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/_bulk", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, err
	}
	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("bulk returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("bulk returned status %d: %s", resp.StatusCode, trimForLog(payload))
	}

	var result bulkResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return false, fmt.Errorf("decode bulk response: %w", err)
	}
	if result.Errors {
		return false, result.firstError()
	}
	return false, nil
}

// Ping checks cluster reachability.
func (s *OpenSearchSink) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/", nil)
	if err != nil {
		return err
	}
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSinkUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errors.ErrSinkUnavailable, resp.StatusCode)
	}
	return nil
}

func (s *OpenSearchSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *OpenSearchSink) auth(req *http.Request) {
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
}

func (s *OpenSearchSink) bulkBody(events []*model.LogEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		action := map[string]map[string]string{
			"index": {"_index": s.indexFor(ev.Timestamp), "_id": ev.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(ev); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (s *OpenSearchSink) indexFor(t time.Time) string {
	return s.indexPrefix + "-" + t.UTC().Format("2006.01.02")
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

func (r bulkResponse) firstError() error {
	for _, item := range r.Items {
		for op, res := range item {
			if len(res.Error) > 0 {
				return fmt.Errorf("bulk %s of %s failed: status=%d error=%s", op, res.ID, res.Status, res.Error)
			}
		}
	}
	return fmt.Errorf("bulk reported errors")
}

func trimForLog(b []byte) string {
	const max = 256
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
