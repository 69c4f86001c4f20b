// Package mcp exposes the pipeline to AI assistants over the Model Context
// Protocol. The server is a thin client of a running logward instance: every
// tool call turns into a request against the HTTP API.
// mcp 包通过 Model Context Protocol 将管线暴露给 AI 助手。该服务器是运行中
// logward 实例的瘦客户端：每次工具调用都转换为对 HTTP API 的请求。
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/logward/logward/internal/version"
)

type Server struct {
	server  *server.MCPServer
	baseURL string
	token   string
	http    *http.Client
}

// NewServer builds an MCP server bound to the logward HTTP API at baseURL.
func NewServer(baseURL, token string) *Server {
	s := server.NewMCPServer(
		"logward-pipeline",
		version.Version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	ms := &Server{
		server:  s,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	ms.registerTools()
	return ms
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("pipeline_stats",
		mcp.WithDescription("Get live statistics of the log pipeline: queue counters, worker progress, level and service tallies."),
	), s.handlePipelineStats)

	s.server.AddTool(mcp.NewTool("recent_logs",
		mcp.WithDescription("Fetch the most recently processed log events, newest first."),
		mcp.WithNumber("count", mcp.Description("Number of events to fetch (default 20, max 200)")),
		mcp.WithString("level", mcp.Description("Only return events of this level (e.g. ERROR)")),
	), s.handleRecentLogs)

	s.server.AddTool(mcp.NewTool("analyze_log",
		mcp.WithDescription("Run AI analysis over one log record and return error type, likely cause and a suggested fix."),
		mcp.WithString("message", mcp.Description("The log message to analyze"), mcp.Required()),
		mcp.WithString("level", mcp.Description("Log level (default ERROR)")),
		mcp.WithString("service", mcp.Description("Service that emitted the log")),
	), s.handleAnalyzeLog)

	s.server.AddTool(mcp.NewTool("summarize_logs",
		mcp.WithDescription("Generate an operator summary of the recent log window."),
		mcp.WithNumber("count", mcp.Description("Window size to summarize (default 30, max 100)")),
	), s.handleSummarizeLogs)
}

func (s *Server) handlePipelineStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats struct {
		Queue struct {
			Enqueued  uint64 `json:"enqueued"`
			Delivered uint64 `json:"delivered"`
			Acked     uint64 `json:"acked"`
			Dropped   uint64 `json:"dropped"`
			Depth     int    `json:"depth"`
		} `json:"queue"`
		Worker *struct {
			Name      string `json:"name"`
			State     string `json:"state"`
			Processed uint64 `json:"processed"`
			Failed    uint64 `json:"failed"`
			Batches   uint64 `json:"batches"`
			Alerts    uint64 `json:"alerts"`
		} `json:"worker"`
		ByLevel   map[string]int `json:"by_level"`
		ByService map[string]int `json:"by_service"`
		Persisted uint64         `json:"persisted_total"`
	}
	if err := s.getJSON(ctx, "/api/logs/stats", &stats); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch stats: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline Statistics:\n")
	fmt.Fprintf(&b, "- Queue: depth=%d enqueued=%d delivered=%d acked=%d dropped=%d\n",
		stats.Queue.Depth, stats.Queue.Enqueued, stats.Queue.Delivered, stats.Queue.Acked, stats.Queue.Dropped)
	if stats.Worker != nil {
		fmt.Fprintf(&b, "- Worker %s (%s): processed=%d failed=%d batches=%d alerts=%d\n",
			stats.Worker.Name, stats.Worker.State, stats.Worker.Processed, stats.Worker.Failed,
			stats.Worker.Batches, stats.Worker.Alerts)
	}
	fmt.Fprintf(&b, "- Persisted events: %d\n", stats.Persisted)
	if len(stats.ByLevel) > 0 {
		fmt.Fprintf(&b, "- By level: %s\n", formatTally(stats.ByLevel))
	}
	if len(stats.ByService) > 0 {
		fmt.Fprintf(&b, "- By service: %s\n", formatTally(stats.ByService))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleRecentLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := int(request.GetFloat("count", 20))
	if count < 1 {
		count = 20
	}
	if count > 200 {
		count = 200
	}
	level := strings.ToUpper(request.GetString("level", ""))

	var resp struct {
		Count int `json:"count"`
		Logs  []struct {
			Timestamp time.Time `json:"timestamp"`
			Level     string    `json:"level"`
			Message   string    `json:"message"`
			Service   string    `json:"service"`
			ErrorType string    `json:"error_type,omitempty"`
		} `json:"logs"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("/api/logs/recent?count=%d", count), &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch recent logs: %v", err)), nil
	}
	if resp.Count == 0 {
		return mcp.NewToolResultText("No recent log events."), nil
	}

	var b strings.Builder
	shown := 0
	for _, ev := range resp.Logs {
		if level != "" && ev.Level != level {
			continue
		}
		shown++
		fmt.Fprintf(&b, "- %s [%s] %s: %s", ev.Timestamp.Format(time.RFC3339), ev.Level, ev.Service, ev.Message)
		if ev.ErrorType != "" {
			fmt.Fprintf(&b, " (%s)", ev.ErrorType)
		}
		b.WriteString("\n")
	}
	if shown == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No recent events at level %s.", level)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recent Events (%d):\n%s", shown, b.String())), nil
}

func (s *Server) handleAnalyzeLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing message: %v", err)), nil
	}
	record := map[string]any{
		"message": message,
		"level":   request.GetString("level", "ERROR"),
	}
	if service := request.GetString("service", ""); service != "" {
		record["service"] = service
	}

	var resp struct {
		Analysis *struct {
			ErrorType   string `json:"error_type"`
			Severity    string `json:"severity"`
			Summary     string `json:"summary"`
			LikelyCause string `json:"likely_cause"`
			QuickFix    string `json:"quick_fix"`
		} `json:"analysis"`
	}
	if err := s.postJSON(ctx, "/api/ai/analyze", record, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	if resp.Analysis == nil {
		return mcp.NewToolResultError("Analysis returned no result"), nil
	}

	a := resp.Analysis
	text := fmt.Sprintf("Analysis:\n- Error Type: %s\n- Severity: %s\n- Summary: %s\n- Likely Cause: %s\n- Quick Fix: %s",
		a.ErrorType, a.Severity, a.Summary, a.LikelyCause, a.QuickFix)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSummarizeLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := int(request.GetFloat("count", 30))
	if count < 1 {
		count = 30
	}
	if count > 100 {
		count = 100
	}

	var resp struct {
		TotalLogs int    `json:"total_logs"`
		Summary   string `json:"summary"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("/api/ai/summarize?count=%d", count), nil, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Summarize failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Summary over %d events:\n%s", resp.TotalLogs, resp.Summary)), nil
}

// Serve runs the MCP server over stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.server)
}

func (s *Server) getJSON(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

func (s *Server) postJSON(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

func (s *Server) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func formatTally(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
