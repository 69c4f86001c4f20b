// Package alert evaluates processed batches against the built-in
// statistical rules and the configured expression rules, deduplicating
// firings through a shared cooldown window.
// alert 包对已处理批次评估内置统计规则与配置的表达式规则，并通过共享冷却
// 窗口对触发去重。
package alert

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/model"
)

// Body truncation limits for alert payloads.
const (
	maxRecurringBody = 120
	maxSampleBody    = 200
)

// Engine holds the compiled rule set and per-instance cooldown state for one
// pipeline.
// Engine 持有单条管线的已编译规则集与按实例的冷却状态。
type Engine struct {
	spikeThreshold   int
	serviceThreshold int
	repeatThreshold  int
	rules            []CompiledRule
	cooldown         *Cooldown
	now              func() time.Time
}

// NewEngine builds an alert engine from config. Invalid thresholds fall back
// to the defaults; unparseable cooldowns fall back to five minutes.
func NewEngine(cfg config.AlertsConfig) *Engine {
	spike := cfg.SpikeThreshold
	if spike <= 0 {
		spike = 5
	}
	service := cfg.ServiceThreshold
	if service <= 0 {
		service = 3
	}
	repeat := cfg.RepeatThreshold
	if repeat <= 0 {
		repeat = 3
	}
	window := config.ParseDurationOr(cfg.Cooldown, 5*time.Minute)
	return &Engine{
		spikeThreshold:   spike,
		serviceThreshold: service,
		repeatThreshold:  repeat,
		rules:            CompileRules(cfg.Rules),
		cooldown:         NewCooldown(window),
		now:              time.Now,
	}
}

// Rules returns the active compiled rules, in config order.
func (e *Engine) Rules() []CompiledRule {
	return e.rules
}

// Evaluate runs every rule over one processed batch and returns the alerts
// that survived the cooldown. Evaluation order is fixed: error spike, then
// per-service clusters sorted by service, then recurring messages sorted by
// body, then expression rules in config order.
// Evaluate 对一个已处理批次运行全部规则，返回通过冷却检查的告警。评估顺序
// 固定：错误尖峰，其次按服务排序的服务故障簇，再次按正文排序的重复消息，
// 最后按配置顺序的表达式规则。
func (e *Engine) Evaluate(events []*model.LogEvent) []*model.Alert {
	if len(events) == 0 {
		return nil
	}
	now := e.now()
	var alerts []*model.Alert

	if n := countLevel(events, model.LevelError); n >= e.spikeThreshold {
		alerts = e.emit(alerts, now, &model.Alert{
			Rule:     "ERROR_SPIKE",
			Severity: model.SeverityCritical,
			Title:    fmt.Sprintf("Error spike: %d errors in one batch", n),
			Count:    n,
		})
	}

	byService := make(map[string]int)
	for _, ev := range events {
		if ev.Level.IsError() {
			byService[ev.Service]++
		}
	}
	for _, service := range sortedKeys(byService) {
		n := byService[service]
		if n < e.serviceThreshold {
			continue
		}
		alerts = e.emit(alerts, now, &model.Alert{
			Rule:     "SERVICE_FAIL:" + service,
			Severity: model.SeverityCritical,
			Title:    fmt.Sprintf("Service %s failing: %d errors in one batch", service, n),
			Count:    n,
		})
	}

	byMessage := make(map[string]int)
	for _, ev := range events {
		if ev.Level.IsError() && ev.Message != "" {
			byMessage[ev.Message]++
		}
	}
	for _, message := range sortedKeys(byMessage) {
		n := byMessage[message]
		if n < e.repeatThreshold {
			continue
		}
		alerts = e.emit(alerts, now, &model.Alert{
			Rule:     "RECURRING:" + hashMessage(message),
			Severity: model.SeverityWarning,
			Title:    fmt.Sprintf("Recurring message: seen %d times in one batch", n),
			Message:  truncate(message, maxRecurringBody),
			Count:    n,
		})
	}

	for _, rule := range e.rules {
		count := 0
		sample := ""
		for _, ev := range events {
			if rule.Match(envFor(ev)) {
				count++
				if sample == "" {
					sample = ev.Message
				}
			}
		}
		if count < rule.Threshold {
			continue
		}
		alerts = e.emit(alerts, now, &model.Alert{
			Rule:     rule.ID,
			Severity: rule.Severity,
			Title:    rule.Title,
			Message:  truncate(sample, maxSampleBody),
			Count:    count,
		})
	}
	return alerts
}

// emit applies the cooldown gate and updates the fired/suppressed counters.
func (e *Engine) emit(alerts []*model.Alert, now time.Time, a *model.Alert) []*model.Alert {
	if !e.cooldown.Allow(a.Rule, now) {
		metrics.AlertsSuppressed.WithLabelValues(ruleLabel(a.Rule)).Inc()
		return alerts
	}
	a.FiredAt = now
	metrics.AlertsFired.WithLabelValues(ruleLabel(a.Rule)).Inc()
	return append(alerts, a)
}

// ruleLabel collapses a rule instance key to its family so per-service and
// per-message instances do not explode metric cardinality.
// ruleLabel 将规则实例键折叠为其族名，避免按服务和按消息的实例撑爆指标基数。
func ruleLabel(rule string) string {
	if i := strings.IndexByte(rule, ':'); i >= 0 {
		return rule[:i]
	}
	return rule
}

func countLevel(events []*model.LogEvent, level model.Level) int {
	n := 0
	for _, ev := range events {
		if ev.Level == level {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hashMessage(message string) string {
	h := fnv.New32a()
	h.Write([]byte(message))
	return fmt.Sprintf("%08x", h.Sum32())
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
