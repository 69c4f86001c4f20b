package model

import "strings"

// Level is the severity of a log event.
// Level 是日志事件的严重级别。
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
	LevelFatal    Level = "FATAL"
)

// Levels lists all valid levels in declared order. The order matters:
// keyword fallback in enrichment scans the message for these names and the
// first hit in this order wins.
// Levels 按声明顺序列出所有有效级别。顺序很重要：富化中的关键字回退会按此
// 顺序扫描消息，先命中者生效。
var Levels = []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical, LevelFatal}

// ParseLevel validates a raw level string (case-insensitive).
// ParseLevel 校验原始级别字符串（不区分大小写）。
func ParseLevel(s string) (Level, bool) {
	upper := Level(strings.ToUpper(strings.TrimSpace(s)))
	for _, l := range Levels {
		if l == upper {
			return l, true
		}
	}
	return "", false
}

// ScanLevel searches message text for a level keyword, first match in
// declared order wins. Matching is a plain substring test on the
// uppercased message.
// ScanLevel 在消息文本中搜索级别关键字，按声明顺序先命中者生效。
func ScanLevel(message string) (Level, bool) {
	upper := strings.ToUpper(message)
	for _, l := range Levels {
		if strings.Contains(upper, string(l)) {
			return l, true
		}
	}
	return "", false
}

// IsError reports whether the level carries error severity.
// IsError 报告级别是否为错误严重级别。
func (l Level) IsError() bool {
	return l == LevelError || l == LevelCritical || l == LevelFatal
}

// Valid reports whether the level is a member of the fixed enumeration.
// Valid 报告级别是否属于固定枚举。
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}
