// Package annotate talks to an OpenAI-compatible chat completions API to
// produce structured analyses of error events and plain-text summaries of
// recent traffic. Every call is bounded by the caller's context; the
// pipeline treats all failures here as advisory.
// annotate 包调用 OpenAI 兼容的 chat completions API，为错误事件生成结构化
// 分析、为近期流量生成纯文本摘要。每次调用都受调用方 context 约束；管线
// 将这里的所有失败视为可忽略。
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/pkg/errors"
)

const (
	// maxSummaryEvents caps how many events one summary may cover.
	maxSummaryEvents = 30

	// Prompt truncation limits keep token usage bounded.
	maxPromptMessage = 500
	maxPromptStack   = 1000

	analysisSystemPrompt = "You are an expert SRE analyzing production log errors. Respond with strict JSON only, no prose and no markdown fences."
	summarySystemPrompt  = "You are an expert SRE summarizing production log activity. Respond with a short plain-text summary."
)

// Client is the chat completions client.
// Client 是 chat completions 客户端。
type Client struct {
	client      *http.Client
	baseURL     string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
}

// NewClient builds the annotator. Disabled config or a missing API key
// (config, then the LOGWARD_AI_KEY environment variable) yields
// ErrAnnotatorDisabled.
// NewClient 构建注释器。配置关闭或缺少 API 密钥（先看配置，再看
// LOGWARD_AI_KEY 环境变量）时返回 ErrAnnotatorDisabled。
func NewClient(cfg config.AIConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, errors.ErrAnnotatorDisabled
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("LOGWARD_AI_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: api key missing", errors.ErrAnnotatorDisabled)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	mdl := cfg.Model
	if mdl == "" {
		mdl = "llama-3.1-70b-versatile"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		client:      &http.Client{Timeout: config.ParseDurationOr(cfg.Timeout, 15*time.Second)},
		baseURL:     baseURL,
		model:       mdl,
		apiKey:      key,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Analyze asks the model for a structured analysis of one error event.
// Analyze 请求模型对单条错误事件给出结构化分析。
func (c *Client) Analyze(ctx context.Context, event *model.LogEvent) (*model.Annotation, error) {
	content, err := c.chat(ctx, analysisSystemPrompt, analysisPrompt(event))
	if err != nil {
		metrics.AnnotationFailures.Inc()
		return nil, err
	}

	var ann model.Annotation
	if err := json.Unmarshal([]byte(stripFences(content)), &ann); err != nil {
		metrics.AnnotationFailures.Inc()
		return nil, fmt.Errorf("%w: %v", errors.ErrAnnotationInvalid, err)
	}
	metrics.AnnotationsTotal.Inc()
	return &ann, nil
}

// Summarize produces a short operator summary over the given events, newest
// first, capped at maxSummaryEvents.
// Summarize 对给定事件（最新在前，至多 maxSummaryEvents 条）生成简短的
// 运维摘要。
func (c *Client) Summarize(ctx context.Context, events []*model.LogEvent) (string, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("no events to summarize")
	}
	if len(events) > maxSummaryEvents {
		events = events[:maxSummaryEvents]
	}

	var sb strings.Builder
	sb.WriteString("Summarize the following recent log events. Call out notable errors, recurring patterns and an overall health assessment in a few sentences.\n\n")
	for _, ev := range events {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", ev.Level, ev.Service, truncateForPrompt(ev.Message, maxPromptMessage))
	}

	summary, err := c.chat(ctx, summarySystemPrompt, sb.String())
	if err != nil {
		metrics.AnnotationFailures.Inc()
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// Ping checks API reachability and key validity via the models listing.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ai endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// chat runs one completion round-trip and returns the first choice content.
func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("ai endpoint returned status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("ai endpoint returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return result.Choices[0].Message.Content, nil
}

// analysisPrompt renders one error event for the model.
func analysisPrompt(event *model.LogEvent) string {
	var sb strings.Builder
	sb.WriteString("Analyze this production error and respond with a JSON object containing exactly these keys: error_type, severity, summary, likely_cause, quick_fix.\n\n")
	fmt.Fprintf(&sb, "Level: %s\n", event.Level)
	fmt.Fprintf(&sb, "Service: %s\n", event.Service)
	fmt.Fprintf(&sb, "Environment: %s\n", event.Environment)
	if event.ErrorType != "" {
		fmt.Fprintf(&sb, "Classified as: %s\n", event.ErrorType)
	}
	fmt.Fprintf(&sb, "Message: %s\n", truncateForPrompt(event.Message, maxPromptMessage))
	if event.StackTrace != "" {
		fmt.Fprintf(&sb, "Stack trace:\n%s\n", truncateForPrompt(event.StackTrace, maxPromptStack))
	}
	return sb.String()
}

// stripFences removes a wrapping markdown code fence from model output.
// stripFences 去除模型输出外层的 markdown 代码围栏。
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateForPrompt(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
