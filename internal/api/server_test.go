package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/annotate"
	"github.com/logward/logward/internal/broadcast"
	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/enrich"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/queue"
	"github.com/logward/logward/internal/sink"
	pkgerrors "github.com/logward/logward/pkg/errors"
)

type failingSink struct{}

func (failingSink) Name() string                                       { return "failing" }
func (failingSink) Persist(context.Context, []*model.LogEvent) error   { return pkgerrors.ErrSinkUnavailable }
func (failingSink) Ping(context.Context) error                         { return pkgerrors.ErrSinkUnavailable }
func (failingSink) Close() error                                       { return nil }

func testEvent(id, level, service, message string) *model.LogEvent {
	return &model.LogEvent{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Level:     model.Level(level),
		Message:   message,
		Service:   service,
		Source:    "test",
		Host:      "test",
	}
}

func newTestServer(t *testing.T, mutate func(*Options)) (*httptest.Server, *queue.BoundedQueue, *sink.MemorySink) {
	t.Helper()
	q := queue.NewBoundedQueue(16, 16)
	mem := sink.NewMemorySink(16)
	opts := Options{
		Queue:  q,
		Memory: mem,
		Sink:   mem,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, q, mem
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

// TestHandleIngest 验证单条摄入端点的接受、校验与背压行为。
func TestHandleIngest(t *testing.T) {
	t.Run("accepts a message record", func(t *testing.T) {
		ts, q, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{"message":"hello","level":"info"}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, true, body["accepted"])
		assert.Equal(t, uint64(1), q.Stats().Enqueued)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{not json`)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects record without message", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{"level":"info"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("accepts msg alias", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{"msg":"short form"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("503 when the queue is full", func(t *testing.T) {
		small := queue.NewBoundedQueue(1, 1)
		require.True(t, small.Enqueue(model.RawRecord{"message": "fills it"}))
		ts, _, _ := newTestServer(t, func(o *Options) { o.Queue = small })
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{"message":"overflow"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("rejects GET", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp, err := http.Get(ts.URL + "/api/logs/ingest")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

// TestHandleIngestBatch 验证批量摄入端点的逐条计数。
func TestHandleIngestBatch(t *testing.T) {
	t.Run("accepts all items", func(t *testing.T) {
		ts, q, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest/batch",
			`[{"message":"a"},{"message":"b"},{"message":"c"}]`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(3), body["accepted"])
		assert.Equal(t, float64(0), body["dropped"])
		assert.Equal(t, float64(3), body["total"])
		assert.Equal(t, uint64(3), q.Stats().Enqueued)
	})

	t.Run("counts drops past capacity", func(t *testing.T) {
		small := queue.NewBoundedQueue(2, 2)
		ts, _, _ := newTestServer(t, func(o *Options) { o.Queue = small })
		resp := postJSON(t, ts.URL+"/api/logs/ingest/batch",
			`[{"message":"a"},{"message":"b"},{"message":"c"}]`)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(2), body["accepted"])
		assert.Equal(t, float64(1), body["dropped"])
	})

	t.Run("503 when nothing fits", func(t *testing.T) {
		small := queue.NewBoundedQueue(1, 1)
		require.True(t, small.Enqueue(model.RawRecord{"message": "fills it"}))
		ts, _, _ := newTestServer(t, func(o *Options) { o.Queue = small })
		resp := postJSON(t, ts.URL+"/api/logs/ingest/batch", `[{"message":"a"}]`)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/logs/ingest/batch", `[]`)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// TestHandleRecent 验证最近事件视图与原始记录视图。
func TestHandleRecent(t *testing.T) {
	t.Run("serves newest first from the memory sink", func(t *testing.T) {
		ts, _, mem := newTestServer(t, nil)
		require.NoError(t, mem.Persist(context.Background(), []*model.LogEvent{
			testEvent("ev-1", "INFO", "web", "first"),
			testEvent("ev-2", "ERROR", "web", "second"),
		}))

		resp, err := http.Get(ts.URL + "/api/logs/recent?count=1")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["count"])
		logs := body["logs"].([]any)
		require.Len(t, logs, 1)
		assert.Equal(t, "ev-2", logs[0].(map[string]any)["id"])
	})

	t.Run("raw view serves delivered queue records", func(t *testing.T) {
		ts, q, _ := newTestServer(t, nil)
		require.True(t, q.Enqueue(model.RawRecord{"message": "raw one"}))
		require.True(t, q.Enqueue(model.RawRecord{"message": "raw two"}))
		q.DequeueBatch(context.Background(), 10, 0)

		resp, err := http.Get(ts.URL + "/api/logs/recent?raw=true")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("empty window", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp, err := http.Get(ts.URL + "/api/logs/recent")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(0), body["count"])
	})
}

// TestHandleStats 验证管线统计视图的组成。
func TestHandleStats(t *testing.T) {
	hub := broadcast.NewHub(4)
	defer hub.Close()
	ts, q, mem := newTestServer(t, func(o *Options) { o.Hub = hub })

	require.True(t, q.Enqueue(model.RawRecord{"message": "queued"}))
	require.NoError(t, mem.Persist(context.Background(), []*model.LogEvent{
		testEvent("ev-1", "ERROR", "payments", "boom"),
		testEvent("ev-2", "INFO", "web", "fine"),
	}))

	resp, err := http.Get(ts.URL + "/api/logs/stats")
	require.NoError(t, err)
	body := decodeBody(t, resp)

	queueStats := body["queue"].(map[string]any)
	assert.Equal(t, float64(1), queueStats["enqueued"])

	byLevel := body["by_level"].(map[string]any)
	assert.Equal(t, float64(1), byLevel["ERROR"])
	byService := body["by_service"].(map[string]any)
	assert.Equal(t, float64(1), byService["payments"])
	assert.Equal(t, float64(2), body["persisted_total"])

	bc := body["broadcast"].(map[string]any)
	assert.Equal(t, float64(0), bc["subscribers"])
}

// TestHandleStreamInfo 验证流自省端点在两种后端下的行为。
func TestHandleStreamInfo(t *testing.T) {
	t.Run("404 on the bounded backend", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp, err := http.Get(ts.URL + "/api/stream/info")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("exposes the durable stream shape", func(t *testing.T) {
		stream := queue.NewDurableStream(queue.StreamOptions{Name: "logward:logs", MaxLen: 100})
		defer stream.Close()
		bound := stream.Bind("workers", "api-test")
		require.True(t, bound.Enqueue(model.RawRecord{"message": "one"}))

		ts, _, _ := newTestServer(t, func(o *Options) {
			o.Queue = bound
			o.Stream = stream
		})
		resp, err := http.Get(ts.URL + "/api/stream/info")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, "logward:logs", body["name"])
		assert.Equal(t, float64(1), body["length"])
	})
}

// TestAuth 验证令牌认证的各种通道与豁免端点。
func TestAuth(t *testing.T) {
	ts, _, _ := newTestServer(t, func(o *Options) {
		o.Config = config.ServerConfig{Token: "sekret"}
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/logs/ingest", `{"message":"x"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong bearer is rejected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/logs/ingest",
			strings.NewReader(`{"message":"x"}`))
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bearer token passes", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/logs/ingest",
			strings.NewReader(`{"message":"x"}`))
		req.Header.Set("Authorization", "Bearer sekret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("header token passes", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/logs/recent", nil)
		req.Header.Set("X-Logward-Token", "sekret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("query token passes", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/logs/recent?token=sekret")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health stays open", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

// TestHandleHealth 验证逐组件健康上报与降级语义。
func TestHandleHealth(t *testing.T) {
	t.Run("healthy pipeline", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "ok", body["status"])
		components := body["components"].(map[string]any)
		assert.Equal(t, "ok", components["queue"])
		assert.Equal(t, "ok", components["sink"])
		assert.Equal(t, "disabled", components["notifier"])
		assert.Equal(t, "disabled", components["annotator"])
	})

	t.Run("failing sink degrades to 503", func(t *testing.T) {
		ts, _, _ := newTestServer(t, func(o *Options) { o.Sink = failingSink{} })
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "degraded", body["status"])
		components := body["components"].(map[string]any)
		assert.Contains(t, components["sink"], "error:")
	})
}

func fakeAIServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAnnotator(t *testing.T, upstream *httptest.Server) *annotate.Client {
	t.Helper()
	client, err := annotate.NewClient(config.AIConfig{
		Enabled: true,
		BaseURL: upstream.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	require.NoError(t, err)
	return client
}

// TestHandleAnalyze 验证按需 AI 分析端点。
func TestHandleAnalyze(t *testing.T) {
	t.Run("annotates a supplied record", func(t *testing.T) {
		upstream := fakeAIServer(t, `{"error_type":"DATABASE_ERROR","severity":"high","summary":"pool exhausted","likely_cause":"leak","quick_fix":"restart"}`)
		ann := testAnnotator(t, upstream)
		ts, _, _ := newTestServer(t, func(o *Options) {
			o.Annotator = ann
			o.Enricher = enrich.NewEnricher(nil, time.Second)
		})

		resp := postJSON(t, ts.URL+"/api/ai/analyze", `{"message":"db pool exhausted","level":"info"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		analysis := body["analysis"].(map[string]any)
		assert.Equal(t, "DATABASE_ERROR", analysis["error_type"])
		logBody := body["log"].(map[string]any)
		assert.Equal(t, "db pool exhausted", logBody["message"])
	})

	t.Run("503 when not configured", func(t *testing.T) {
		ts, _, _ := newTestServer(t, nil)
		resp := postJSON(t, ts.URL+"/api/ai/analyze", `{"message":"x"}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

// TestHandleSummarize 验证最近事件摘要端点。
func TestHandleSummarize(t *testing.T) {
	t.Run("summarizes the recent window", func(t *testing.T) {
		upstream := fakeAIServer(t, "Mostly healthy, one payment incident.")
		ann := testAnnotator(t, upstream)
		ts, _, mem := newTestServer(t, func(o *Options) { o.Annotator = ann })
		require.NoError(t, mem.Persist(context.Background(), []*model.LogEvent{
			testEvent("ev-1", "ERROR", "payments", "declined"),
		}))

		resp := postJSON(t, ts.URL+"/api/ai/summarize", ``)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["total_logs"])
		assert.Equal(t, "Mostly healthy, one payment incident.", body["summary"])
	})

	t.Run("empty window short-circuits", func(t *testing.T) {
		upstream := fakeAIServer(t, "unused")
		ann := testAnnotator(t, upstream)
		ts, _, _ := newTestServer(t, func(o *Options) { o.Annotator = ann })

		resp := postJSON(t, ts.URL+"/api/ai/summarize", ``)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(0), body["total_logs"])
	})
}

// TestHandleWS 验证 WebSocket 客户端收到广播事件。
func TestHandleWS(t *testing.T) {
	hub := broadcast.NewHub(16)
	defer hub.Close()
	ts, _, _ := newTestServer(t, func(o *Options) { o.Hub = hub })

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/logs"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish(testEvent("ev-live", "ERROR", "web", "live frame"))

	var got model.LogEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ev-live", got.ID)
	assert.Equal(t, "live frame", got.Message)
}

// TestHandleRoot 验证根端点的服务标识。
func TestHandleRoot(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "logward", body["service"])
	assert.Equal(t, "running", body["status"])

	missing, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
