package alert

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/logger"
)

// RuleEnv is the expression environment for one log event. The exported
// field names are the identifiers available inside rule expressions.
// RuleEnv 是单条日志事件的表达式环境。导出字段名即规则表达式中可用的标识符。
type RuleEnv struct {
	Level       string
	Message     string
	Service     string
	ErrorType   string
	Environment string
	Host        string
}

// CompiledRule is a configured rule with its expression compiled once at
// engine construction.
type CompiledRule struct {
	ID        string
	Severity  string
	Title     string
	Threshold int
	program   *vm.Program
}

// CompileRules compiles the configured rule expressions. A rule whose
// expression fails to compile is disabled with an error log, never fatal.
// CompileRules 编译配置的规则表达式。编译失败的规则会被禁用并记录错误日志，
// 绝不致命。
func CompileRules(rules []config.AlertRule) []CompiledRule {
	compiled := make([]CompiledRule, 0, len(rules))
	for _, r := range rules {
		program, err := expr.Compile(r.Expression, expr.Env(RuleEnv{}))
		if err != nil {
			logger.Get(nil).Errorf("❌ Failed to compile alert rule '%s': %v", r.ID, err)
			continue
		}
		threshold := r.Threshold
		if threshold <= 0 {
			threshold = 1
		}
		title := r.Title
		if title == "" {
			title = r.ID
		}
		severity := r.Severity
		if severity == "" {
			severity = model.SeverityWarning
		}
		compiled = append(compiled, CompiledRule{
			ID:        r.ID,
			Severity:  severity,
			Title:     title,
			Threshold: threshold,
			program:   program,
		})
	}
	return compiled
}

// Match evaluates the rule against one event environment. Runtime errors and
// non-boolean results count as no match.
// Match 对单条事件环境评估规则。运行时错误与非布尔结果都视为不匹配。
func (r CompiledRule) Match(env RuleEnv) bool {
	output, err := expr.Run(r.program, env)
	if err != nil {
		return false
	}
	matched, ok := output.(bool)
	return ok && matched
}

func envFor(event *model.LogEvent) RuleEnv {
	return RuleEnv{
		Level:       string(event.Level),
		Message:     event.Message,
		Service:     event.Service,
		ErrorType:   string(event.ErrorType),
		Environment: event.Environment,
		Host:        event.Host,
	}
}
