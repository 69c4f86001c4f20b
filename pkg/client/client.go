// Package client is a small SDK for the logward HTTP ingest API. It is what
// `logward ingest` uses and what external producers can embed.
// client 包是 logward HTTP 摄入 API 的小型 SDK。`logward ingest` 命令使用它，
// 外部生产者也可以嵌入它。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running logward instance over its HTTP API.
// Client 通过 HTTP API 与运行中的 logward 实例通信。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// BatchResult reports per-item outcomes of a batch ingest call.
// BatchResult 报告批量摄入调用的逐条结果。
type BatchResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
	Total    int `json:"total"`
}

// New builds a client for the given base URL (e.g. "http://127.0.0.1:8000").
// token may be empty when the server runs without auth.
// New 为给定的基础 URL 构建客户端。服务器未启用认证时 token 可为空。
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout, Transport: tr},
	}
}

// Ingest submits one loose record. The record must carry a message (or msg)
// field; the server rejects it otherwise.
// Ingest 提交一条松散记录。记录必须携带 message（或 msg）字段，否则服务器
// 会拒绝。
func (c *Client) Ingest(ctx context.Context, record map[string]any) error {
	return c.post(ctx, "/api/logs/ingest", record, nil)
}

// IngestBatch submits a batch of records and returns the per-item outcome.
// A response with zero accepted records is returned alongside the error.
// IngestBatch 提交一批记录并返回逐条结果。零接受的响应会与错误一并返回。
func (c *Client) IngestBatch(ctx context.Context, records []map[string]any) (*BatchResult, error) {
	var result BatchResult
	if err := c.post(ctx, "/api/logs/ingest/batch", records, &result); err != nil {
		return &result, err
	}
	return &result, nil
}

// Health returns the server's overall status string ("ok" or "degraded").
// Health 返回服务器整体状态字符串（"ok" 或 "degraded"）。
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", err
	}
	return body.Status, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 != 2 {
		// Error responses may still carry the JSON outcome (e.g. a batch
		// where every record was dropped).
		// 错误响应可能仍携带 JSON 结果（例如所有记录都被丢弃的批次）。
		if out != nil {
			_ = json.Unmarshal(body, out)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("malformed response: %w", err)
		}
	}
	return nil
}
