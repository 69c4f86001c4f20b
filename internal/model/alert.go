package model

import (
	"fmt"
	"time"
)

// Alert severity tiers used by notifiers for display routing.
// Alert 严重级别，通知器用于显示路由。
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Alert is a deduplicated operator alert produced by rule evaluation over
// one processed batch. Rule is the cooldown key: one Alert per rule
// instance per cooldown window.
// Alert 是对一个已处理批次进行规则评估后产生的去重运维告警。Rule 是冷却
// 键：每个规则实例在一个冷却窗口内最多一条告警。
type Alert struct {
	Rule     string    `json:"rule"`
	Severity string    `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Count    int       `json:"count"`
	FiredAt  time.Time `json:"fired_at"`
}

// Text renders the alert as a Markdown snippet for chat notifiers.
// Text 将告警渲染为聊天通知用的 Markdown 片段。
func (a Alert) Text() string {
	if a.Message == "" {
		return fmt.Sprintf("%s *%s*", a.emoji(), a.Title)
	}
	return fmt.Sprintf("%s *%s*\n`%s`", a.emoji(), a.Title, a.Message)
}

func (a Alert) emoji() string {
	if a.Severity == SeverityCritical {
		return "🔥"
	}
	return "⚠️"
}
