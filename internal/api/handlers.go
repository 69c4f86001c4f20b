package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/utils/logger"
)

// handleIngest accepts one loose JSON record and enqueues it.
// handleIngest 接收一条松散 JSON 记录并入队。
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw model.RawRecord
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if raw.String("message") == "" && raw.String("msg") == "" {
		http.Error(w, "Record must carry a message field", http.StatusBadRequest)
		return
	}

	if !s.opts.Queue.Enqueue(raw) {
		metrics.IngestRejectedTotal.Inc()
		http.Error(w, "Queue full", http.StatusServiceUnavailable)
		return
	}
	metrics.IngestedTotal.WithLabelValues("api").Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// handleIngestBatch accepts a JSON array of records and enqueues each one,
// reporting per-item outcomes.
// handleIngestBatch 接收 JSON 数组并逐条入队，返回逐条结果。
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var records []model.RawRecord
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&records); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		http.Error(w, "Empty batch", http.StatusBadRequest)
		return
	}

	accepted, dropped := 0, 0
	for _, raw := range records {
		if s.opts.Queue.Enqueue(raw) {
			accepted++
			metrics.IngestedTotal.WithLabelValues("api").Inc()
		} else {
			dropped++
			metrics.IngestRejectedTotal.Inc()
		}
	}

	status := http.StatusAccepted
	if accepted == 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"accepted": accepted,
		"dropped":  dropped,
		"total":    len(records),
	})
}

// handleRecent serves the retained event window, newest first. With
// ?raw=true it serves the queue's raw-record ring instead.
// handleRecent 返回保留的事件窗口，最新在前。?raw=true 时改为返回队列的
// 原始记录环。
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", 100, 1000)

	if r.URL.Query().Get("raw") == "true" {
		rp, ok := s.opts.Queue.(queue.RecentProvider)
		if !ok {
			http.Error(w, "Raw view not supported by this backend", http.StatusNotFound)
			return
		}
		records := rp.Recent(count)
		writeJSON(w, http.StatusOK, map[string]any{
			"count": len(records),
			"logs":  records,
		})
		return
	}

	if s.opts.Memory == nil {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0, "logs": []any{}})
		return
	}
	events := s.opts.Memory.Recent(count)
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(events),
		"logs":  events,
	})
}

type workerStats struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Batches   uint64 `json:"batches"`
	Alerts    uint64 `json:"alerts"`
}

// handleStats assembles the pipeline-wide statistics view.
// handleStats 汇总整条管线的统计视图。
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"queue": s.opts.Queue.Stats(),
	}

	if s.opts.Worker != nil {
		c := s.opts.Worker.Counters()
		resp["worker"] = workerStats{
			Name:      s.opts.Worker.Name(),
			State:     string(s.opts.Worker.State()),
			Processed: c.Processed,
			Failed:    c.Failed,
			Batches:   c.Batches,
			Alerts:    c.Alerts,
		}
	}
	if s.opts.Memory != nil {
		byLevel, byService := s.opts.Memory.Tallies()
		resp["by_level"] = byLevel
		resp["by_service"] = byService
		resp["persisted_total"] = s.opts.Memory.Total()
	}
	if s.opts.Hub != nil {
		resp["broadcast"] = map[string]any{
			"subscribers": s.opts.Hub.Count(),
			"dropped":     s.opts.Hub.Dropped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStreamInfo exposes the durable stream's shape; the bounded backend
// has none.
// handleStreamInfo 暴露持久化流的形态；有界后端没有。
func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stream == nil {
		http.Error(w, "Stream backend not active", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Stream.Info())
}

// handleAnalyze runs enrichment plus a forced AI annotation over one
// supplied record.
// handleAnalyze 对一条给定记录执行富化并强制运行 AI 注解。
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Annotator == nil || s.opts.Enricher == nil {
		http.Error(w, "AI analysis not configured", http.StatusServiceUnavailable)
		return
	}

	var raw model.RawRecord
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event := s.opts.Enricher.Process(r.Context(), raw)
	if event.Annotation == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		ann, err := s.opts.Annotator.Analyze(ctx, event)
		if err != nil {
			logger.Get(nil).Warnf("⚠️ On-demand analysis failed: %v", err)
			http.Error(w, "Analysis failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		event.Annotation = ann
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"log":      event,
		"analysis": event.Annotation,
	})
}

// handleSummarize asks the annotator for an operator summary of the recent
// event window.
// handleSummarize 请求注解器对最近事件窗口生成运维摘要。
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Annotator == nil {
		http.Error(w, "AI analysis not configured", http.StatusServiceUnavailable)
		return
	}

	count := queryInt(r, "count", 30, 100)
	var events []*model.LogEvent
	if s.opts.Memory != nil {
		events = s.opts.Memory.Recent(count)
	}
	if len(events) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"total_logs": 0,
			"summary":    "No recent events to summarize",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	summary, err := s.opts.Annotator.Summarize(ctx, events)
	if err != nil {
		logger.Get(nil).Warnf("⚠️ Summarize failed: %v", err)
		http.Error(w, "Summarize failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_logs": len(events),
		"summary":    summary,
	})
}
