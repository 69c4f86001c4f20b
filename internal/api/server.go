// Package api exposes the ingest and observability surface over HTTP: raw
// record ingestion, recent/stats views, stream introspection, AI analysis,
// health, Prometheus metrics and a live WebSocket feed.
// api 包通过 HTTP 暴露摄入与可观测面：原始记录摄入、最近/统计视图、流自省、
// AI 分析、健康检查、Prometheus 指标与实时 WebSocket 推送。
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logward/logward/internal/annotate"
	"github.com/logward/logward/internal/broadcast"
	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/enrich"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/sink"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/internal/version"
	"github.com/logward/logward/internal/worker"
)

// Options wires the server's collaborators. Queue is required; everything
// else degrades gracefully when nil.
// Options 装配服务器的协作者。Queue 必填，其余为 nil 时优雅降级。
type Options struct {
	Queue queue.Queue
	// Stream is set only on the stream backend; /api/stream/info 404s
	// without it.
	Stream    *queue.DurableStream
	Memory    *sink.MemorySink
	Sink      sink.Sink
	Notifier  notify.Notifier
	Annotator *annotate.Client
	Enricher  *enrich.Enricher
	Hub       *broadcast.Hub
	Worker    *worker.Worker
	Config    config.ServerConfig
}

type Server struct {
	opts Options
	srv  *http.Server
}

func NewServer(opts Options) *Server {
	s := &Server{opts: opts}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Config.Host, opts.Config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed so tests can drive the mux
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints, token-gated when a token is configured
	// API 端点，配置令牌后需要认证
	mux.Handle("/api/logs/ingest", s.withAuth(http.HandlerFunc(s.handleIngest)))
	mux.Handle("/api/logs/ingest/batch", s.withAuth(http.HandlerFunc(s.handleIngestBatch)))
	mux.Handle("/api/logs/recent", s.withAuth(http.HandlerFunc(s.handleRecent)))
	mux.Handle("/api/logs/stats", s.withAuth(http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/stream/info", s.withAuth(http.HandlerFunc(s.handleStreamInfo)))
	mux.Handle("/api/ai/analyze", s.withAuth(http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("/api/ai/summarize", s.withAuth(http.HandlerFunc(s.handleSummarize)))

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/logs", s.handleWS)
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	logger.Get(nil).Infof("🚀 API server listening on http://%s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Get(nil).Info("🛑 API server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "logward",
		"version": version.Version,
		"status":  "running",
	})
}
