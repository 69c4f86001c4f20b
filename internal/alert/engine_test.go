package alert

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/model"
)

func testEngine(cfg config.AlertsConfig, now time.Time) *Engine {
	e := NewEngine(cfg)
	e.now = func() time.Time { return now }
	return e
}

func eventWith(level model.Level, service, message string) *model.LogEvent {
	return &model.LogEvent{
		ID:          "t-" + service,
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		Service:     service,
		Source:      "test",
		Environment: "production",
		Host:        "host-1",
	}
}

func findAlert(alerts []*model.Alert, prefix string) *model.Alert {
	for _, a := range alerts {
		if strings.HasPrefix(a.Rule, prefix) {
			return a
		}
	}
	return nil
}

// TestEngine_ErrorSpike 验证批内 ERROR 尖峰告警 / verifies the per-batch error
// spike alert.
func TestEngine_ErrorSpike(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fires at threshold", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		var events []*model.LogEvent
		for i := 0; i < 5; i++ {
			events = append(events, eventWith(model.LevelError, fmt.Sprintf("svc-%d", i), fmt.Sprintf("distinct failure %d", i)))
		}
		alerts := e.Evaluate(events)
		require.Len(t, alerts, 1)
		a := alerts[0]
		assert.Equal(t, "ERROR_SPIKE", a.Rule)
		assert.Equal(t, model.SeverityCritical, a.Severity)
		assert.Equal(t, 5, a.Count)
		assert.Equal(t, base, a.FiredAt)
		assert.Contains(t, a.Title, "5 errors")
	})

	t.Run("below threshold stays quiet", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		var events []*model.LogEvent
		for i := 0; i < 4; i++ {
			events = append(events, eventWith(model.LevelError, fmt.Sprintf("svc-%d", i), fmt.Sprintf("distinct failure %d", i)))
		}
		assert.Empty(t, e.Evaluate(events))
	})

	t.Run("counts only ERROR level", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		var events []*model.LogEvent
		for i := 0; i < 5; i++ {
			events = append(events, eventWith(model.LevelFatal, fmt.Sprintf("svc-%d", i), fmt.Sprintf("distinct crash %d", i)))
		}
		assert.Nil(t, findAlert(e.Evaluate(events), "ERROR_SPIKE"))
	})
}

// TestEngine_ServiceFailure 验证按服务聚簇的故障告警 / verifies the per-service
// failure cluster alert.
func TestEngine_ServiceFailure(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fires per service", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelCritical, "payments", "charge failed a"),
			eventWith(model.LevelCritical, "payments", "charge failed b"),
			eventWith(model.LevelCritical, "payments", "charge failed c"),
			eventWith(model.LevelCritical, "search", "index miss"),
		}
		alerts := e.Evaluate(events)
		require.Len(t, alerts, 1)
		a := alerts[0]
		assert.Equal(t, "SERVICE_FAIL:payments", a.Rule)
		assert.Equal(t, model.SeverityCritical, a.Severity)
		assert.Equal(t, 3, a.Count)
		assert.Contains(t, a.Title, "payments")
	})

	t.Run("mixed error severities count together", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "billing", "invoice error one"),
			eventWith(model.LevelCritical, "billing", "invoice error two"),
			eventWith(model.LevelFatal, "billing", "invoice error three"),
		}
		a := findAlert(e.Evaluate(events), "SERVICE_FAIL:billing")
		require.NotNil(t, a)
		assert.Equal(t, 3, a.Count)
	})

	t.Run("warnings do not count", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelWarning, "billing", "slow one"),
			eventWith(model.LevelWarning, "billing", "slow two"),
			eventWith(model.LevelWarning, "billing", "slow three"),
		}
		assert.Nil(t, findAlert(e.Evaluate(events), "SERVICE_FAIL:"))
	})
}

// TestEngine_RecurringMessage 验证重复消息告警与正文截断 / verifies the recurring
// message alert and body truncation.
func TestEngine_RecurringMessage(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fires on identical error bodies", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "cache-a", "connection refused"),
			eventWith(model.LevelError, "cache-b", "connection refused"),
			eventWith(model.LevelError, "cache-c", "connection refused"),
		}
		alerts := e.Evaluate(events)
		require.Len(t, alerts, 1)
		a := alerts[0]
		assert.True(t, strings.HasPrefix(a.Rule, "RECURRING:"))
		assert.Equal(t, model.SeverityWarning, a.Severity)
		assert.Equal(t, 3, a.Count)
		assert.Equal(t, "connection refused", a.Message)
	})

	t.Run("mixed error severities count together", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "cache-a", "connection refused"),
			eventWith(model.LevelCritical, "cache-b", "connection refused"),
			eventWith(model.LevelFatal, "cache-c", "connection refused"),
		}
		a := findAlert(e.Evaluate(events), "RECURRING:")
		require.NotNil(t, a)
		assert.Equal(t, 3, a.Count)
	})

	t.Run("info repeats stay silent", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelInfo, "cache-a", "cache refreshed"),
			eventWith(model.LevelInfo, "cache-b", "cache refreshed"),
			eventWith(model.LevelInfo, "cache-c", "cache refreshed"),
		}
		assert.Empty(t, e.Evaluate(events))
	})

	t.Run("body truncated", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		long := strings.Repeat("x", 300)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "cache-a", long),
			eventWith(model.LevelError, "cache-b", long),
			eventWith(model.LevelError, "cache-c", long),
		}
		alerts := e.Evaluate(events)
		require.Len(t, alerts, 1)
		assert.Len(t, alerts[0].Message, maxRecurringBody)
	})

	t.Run("empty bodies ignored", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "cache-a", ""),
			eventWith(model.LevelError, "cache-b", ""),
			eventWith(model.LevelError, "cache-c", ""),
		}
		assert.Empty(t, e.Evaluate(events))
	})

	t.Run("same body hashes to same rule key", func(t *testing.T) {
		e := testEngine(config.AlertsConfig{}, base)
		events := []*model.LogEvent{
			eventWith(model.LevelError, "cache-a", "repeat me"),
			eventWith(model.LevelError, "cache-b", "repeat me"),
			eventWith(model.LevelError, "cache-c", "repeat me"),
		}
		first := e.Evaluate(events)
		require.Len(t, first, 1)
		assert.Equal(t, "RECURRING:"+hashMessage("repeat me"), first[0].Rule)
	})
}

// TestEngine_ExpressionRules 验证配置表达式规则 / verifies configured expression rules.
func TestEngine_ExpressionRules(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("threshold and sample", func(t *testing.T) {
		cfg := config.AlertsConfig{Rules: []config.AlertRule{{
			ID:         "CRASH_LOOP",
			Severity:   model.SeverityCritical,
			Title:      "Crash loop",
			Expression: `lower(Message) contains "crash"`,
			Threshold:  2,
		}}}
		e := testEngine(cfg, base)
		events := []*model.LogEvent{
			eventWith(model.LevelWarning, "api", "App CRASH on startup"),
			eventWith(model.LevelWarning, "api", "healthy heartbeat"),
			eventWith(model.LevelWarning, "api", "crash loop detected"),
		}
		alerts := e.Evaluate(events)
		require.Len(t, alerts, 1)
		a := alerts[0]
		assert.Equal(t, "CRASH_LOOP", a.Rule)
		assert.Equal(t, "Crash loop", a.Title)
		assert.Equal(t, 2, a.Count)
		assert.Equal(t, "App CRASH on startup", a.Message)
	})

	t.Run("below threshold", func(t *testing.T) {
		cfg := config.AlertsConfig{Rules: []config.AlertRule{{
			ID:         "CRASH_LOOP",
			Expression: `lower(Message) contains "crash"`,
			Threshold:  2,
		}}}
		e := testEngine(cfg, base)
		events := []*model.LogEvent{
			eventWith(model.LevelWarning, "api", "one crash only"),
		}
		assert.Empty(t, e.Evaluate(events))
	})

	t.Run("default rules catch panics and slowness", func(t *testing.T) {
		cfg := config.AlertsConfig{Rules: config.DefaultAlertRules()}
		e := testEngine(cfg, base)
		events := []*model.LogEvent{
			eventWith(model.LevelCritical, "worker", "panic: nil pointer dereference"),
			eventWith(model.LevelWarning, "gateway", "upstream latency above budget"),
		}
		alerts := e.Evaluate(events)
		require.NotNil(t, findAlert(alerts, "CRASH"))
		require.NotNil(t, findAlert(alerts, "SLOW"))
	})

	t.Run("sample truncated", func(t *testing.T) {
		cfg := config.AlertsConfig{Rules: []config.AlertRule{{
			ID:         "LONG",
			Expression: `lower(Message) contains "crash"`,
			Threshold:  1,
		}}}
		e := testEngine(cfg, base)
		long := "crash " + strings.Repeat("y", 400)
		alerts := e.Evaluate([]*model.LogEvent{eventWith(model.LevelWarning, "api", long)})
		require.Len(t, alerts, 1)
		assert.Len(t, alerts[0].Message, maxSampleBody)
	})
}

// TestEngine_Cooldown 验证冷却窗口去重 / verifies cooldown deduplication.
func TestEngine_Cooldown(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(config.AlertsConfig{Cooldown: "5m"}, base)

	var events []*model.LogEvent
	for i := 0; i < 5; i++ {
		events = append(events, eventWith(model.LevelError, fmt.Sprintf("svc-%d", i), fmt.Sprintf("distinct failure %d", i)))
	}

	require.Len(t, e.Evaluate(events), 1)

	// same batch a minute later is suppressed
	e.now = func() time.Time { return base.Add(time.Minute) }
	assert.Empty(t, e.Evaluate(events))

	// after the window the rule fires again
	e.now = func() time.Time { return base.Add(6 * time.Minute) }
	assert.Len(t, e.Evaluate(events), 1)
}

// TestEngine_CooldownPerInstance 验证冷却按规则实例隔离 / verifies cooldown isolates
// rule instances.
func TestEngine_CooldownPerInstance(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(config.AlertsConfig{}, base)

	batchFor := func(service string) []*model.LogEvent {
		var events []*model.LogEvent
		for i := 0; i < 3; i++ {
			events = append(events, eventWith(model.LevelCritical, service, fmt.Sprintf("%s failure %d", service, i)))
		}
		return events
	}

	first := e.Evaluate(batchFor("payments"))
	require.Len(t, first, 1)
	assert.Equal(t, "SERVICE_FAIL:payments", first[0].Rule)

	// payments is cooling down, billing is not
	e.now = func() time.Time { return base.Add(time.Minute) }
	second := e.Evaluate(append(batchFor("payments"), batchFor("billing")...))
	require.Len(t, second, 1)
	assert.Equal(t, "SERVICE_FAIL:billing", second[0].Rule)
}

// TestEngine_EmptyBatch 验证空批次无告警 / verifies empty batches produce nothing.
func TestEngine_EmptyBatch(t *testing.T) {
	e := testEngine(config.AlertsConfig{}, time.Now())
	assert.Nil(t, e.Evaluate(nil))
	assert.Nil(t, e.Evaluate([]*model.LogEvent{}))
}

// TestRuleLabel 验证实例键折叠为族名 / verifies instance keys collapse to families.
func TestRuleLabel(t *testing.T) {
	assert.Equal(t, "ERROR_SPIKE", ruleLabel("ERROR_SPIKE"))
	assert.Equal(t, "SERVICE_FAIL", ruleLabel("SERVICE_FAIL:payments"))
	assert.Equal(t, "RECURRING", ruleLabel("RECURRING:9f3a2b1c"))
}

// TestHashMessage 验证哈希稳定且为 8 位十六进制 / verifies the hash is stable 8-char hex.
func TestHashMessage(t *testing.T) {
	h := hashMessage("connection refused")
	assert.Len(t, h, 8)
	assert.Equal(t, h, hashMessage("connection refused"))
	assert.NotEqual(t, h, hashMessage("connection accepted"))
}
