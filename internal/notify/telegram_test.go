package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/pkg/errors"
)

// TestNewTelegramNotifier_Disabled 验证缺少凭据时禁用 / verifies missing
// credentials disable the notifier.
func TestNewTelegramNotifier_Disabled(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := NewTelegramNotifier(config.TelegramConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotifierDisabled))

	_, err = NewTelegramNotifier(config.TelegramConfig{BotToken: "tok"})
	assert.Error(t, err)
}

// TestNewTelegramNotifier_EnvFallback 验证环境变量回退 / verifies env fallback.
func TestNewTelegramNotifier_EnvFallback(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "env-chat")

	n, err := NewTelegramNotifier(config.TelegramConfig{})
	require.NoError(t, err)
	assert.Equal(t, "env-token", n.token)
	assert.Equal(t, "env-chat", n.chatID)

	// explicit config wins over env
	n, err = NewTelegramNotifier(config.TelegramConfig{BotToken: "cfg-token", ChatID: "cfg-chat"})
	require.NoError(t, err)
	assert.Equal(t, "cfg-token", n.token)
}

// TestTelegramNotifier_Send 验证 sendMessage 请求构造 / verifies sendMessage
// request construction.
func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(config.TelegramConfig{BotToken: "tok123", ChatID: "chat456", Timeout: "2s"})
	require.NoError(t, err)
	n.baseURL = srv.URL

	delivered := n.Send(context.Background(), testAlert())
	assert.True(t, delivered)
	assert.Equal(t, "/bottok123/sendMessage", path)
	assert.Equal(t, "chat456", payload["chat_id"])
	assert.Equal(t, "Markdown", payload["parse_mode"])
	assert.Contains(t, payload["text"], "Error spike")
}

// TestTelegramNotifier_SendFailure 验证失败路径返回未投递 / verifies failure paths
// report undelivered.
func TestTelegramNotifier_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	n, err := NewTelegramNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "chat", Timeout: "1s"})
	require.NoError(t, err)
	n.baseURL = srv.URL

	assert.False(t, n.Send(context.Background(), testAlert()))

	srv.Close()
	assert.False(t, n.Send(context.Background(), testAlert()))
}
