package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealth reports per-component status. Queue and sink are required:
// either failing degrades the service to 503. Notifier and annotator are
// optional and only reported.
// handleHealth 报告每个组件的状态。队列与 sink 为必需组件，任一异常都会
// 将服务降级为 503。通知器与注解器为可选，仅上报状态。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := map[string]string{}

	if s.opts.Queue != nil {
		components["queue"] = "ok"
	} else {
		components["queue"] = "missing"
		status = "degraded"
	}

	if s.opts.Sink != nil {
		if err := s.opts.Sink.Ping(ctx); err != nil {
			components["sink"] = "error: " + err.Error()
			status = "degraded"
		} else {
			components["sink"] = "ok"
		}
	} else {
		components["sink"] = "missing"
		status = "degraded"
	}

	if s.opts.Notifier != nil {
		components["notifier"] = s.opts.Notifier.Name()
	} else {
		components["notifier"] = "disabled"
	}

	if s.opts.Annotator != nil {
		if err := s.opts.Annotator.Ping(ctx); err != nil {
			components["annotator"] = "error: " + err.Error()
		} else {
			components["annotator"] = "ok"
		}
	} else {
		components["annotator"] = "disabled"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}
