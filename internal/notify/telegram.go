package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/pkg/errors"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the bot sendMessage API.
// TelegramNotifier 通过机器人 sendMessage API 将告警发送到聊天。
type TelegramNotifier struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegramNotifier builds the notifier. Token and chat ID fall back to
// the TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID environment variables; with
// neither present the notifier is disabled.
// NewTelegramNotifier 构建通知器。令牌与聊天 ID 回退到 TELEGRAM_BOT_TOKEN /
// TELEGRAM_CHAT_ID 环境变量；两者都缺失时通知器被禁用。
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	token := cfg.BotToken
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	chatID := cfg.ChatID
	if chatID == "" {
		chatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("%w: telegram bot token or chat id missing", errors.ErrNotifierDisabled)
	}
	return &TelegramNotifier{
		client:  &http.Client{Timeout: config.ParseDurationOr(cfg.Timeout, 10*time.Second)},
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
	}, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send delivers one alert as a Markdown message. A failure is logged and
// counted; the alert is not queued for retry.
func (t *TelegramNotifier) Send(ctx context.Context, alert model.Alert) bool {
	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       alert.Text(),
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.fail(alert, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/bot"+t.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		t.fail(alert, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.fail(alert, err)
		return false
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.fail(alert, fmt.Errorf("telegram returned HTTP %d", resp.StatusCode))
		return false
	}
	return true
}

func (t *TelegramNotifier) Close() {}

func (t *TelegramNotifier) fail(alert model.Alert, err error) {
	metrics.NotifyFailures.WithLabelValues(t.Name()).Inc()
	logger.Get(nil).Warnf("⚠️ Telegram delivery failed for alert %s: %v", alert.Rule, err)
}
