package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIngestSendsTokenAndBody verifies the single-record call shape.
// TestIngestSendsTokenAndBody 验证单条记录调用的形态。
func TestIngestSendsTokenAndBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/logs/ingest", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret", time.Second)
	err := c.Ingest(context.Background(), map[string]any{"message": "hello", "level": "ERROR"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "hello", gotBody["message"])
}

// TestIngestBatchParsesOutcome verifies the per-item counts come back.
// TestIngestBatchParsesOutcome 验证逐条计数能正确返回。
func TestIngestBatchParsesOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/ingest/batch", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"accepted":2,"dropped":1,"total":3}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	result, err := c.IngestBatch(context.Background(), []map[string]any{
		{"message": "a"}, {"message": "b"}, {"message": "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, 3, result.Total)
}

// TestIngestBatchQueueFull verifies an all-dropped batch surfaces both the
// error and the counts.
// TestIngestBatchQueueFull 验证全部被丢弃的批次同时返回错误和计数。
func TestIngestBatchQueueFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"accepted":0,"dropped":2,"total":2}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	result, err := c.IngestBatch(context.Background(), []map[string]any{
		{"message": "a"}, {"message": "b"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 2, result.Dropped)
}

// TestIngestServerError verifies non-2xx responses become errors carrying
// the server's message.
// TestIngestServerError 验证非 2xx 响应变为携带服务器消息的错误。
func TestIngestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Record must carry a message field", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	err := c.Ingest(context.Background(), map[string]any{"level": "INFO"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "message field")
}

// TestHealth verifies the status string round-trip.
// TestHealth 验证状态字符串的往返。
func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","components":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status)
}
