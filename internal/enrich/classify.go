package enrich

import (
	"regexp"

	"github.com/logward/logward/internal/model"
)

// classification binds one pattern to its error bucket. Order in the table
// is the match priority: the first hit wins.
// classification 将一个模式绑定到其错误类别。表中的顺序即匹配优先级：先命中者生效。
type classification struct {
	re        *regexp.Regexp
	errorType model.ErrorType
}

var classifications = []classification{
	{regexp.MustCompile(`(?i)connection.*refused|econnrefused`), model.ErrorTypeConnection},
	{regexp.MustCompile(`(?i)timeout|timed out`), model.ErrorTypeTimeout},
	{regexp.MustCompile(`(?i)out of memory|oom`), model.ErrorTypeMemory},
	{regexp.MustCompile(`(?i)database|db.*error`), model.ErrorTypeDatabase},
	{regexp.MustCompile(`(?i)permission|403|forbidden`), model.ErrorTypePermission},
	{regexp.MustCompile(`(?i)404|not found`), model.ErrorTypeNotFound},
	{regexp.MustCompile(`(?i)500|internal server`), model.ErrorTypeServer},
	{regexp.MustCompile(`(?i)authentication|auth.*failed`), model.ErrorTypeAuthentication},
}

// stackPatterns recognize pasted stack traces inside the message body:
// Python traceback blocks and JS/Java "at file:line:col" frames. DOTALL so
// a multi-line paste matches as one block.
// stackPatterns 识别消息体中粘贴的堆栈跟踪：Python traceback 块和
// JS/Java 的 "at 文件:行:列" 帧。使用 DOTALL 以便多行内容作为整体匹配。
var stackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)Traceback \(most recent call last\):.*`),
	regexp.MustCompile(`(?s)at .*\(.*:\d+:\d+\)`),
}

// maxStackTrace caps the extracted stack trace length.
const maxStackTrace = 2000

// Classify buckets an error message by the first matching pattern.
// Classify 按第一个匹配的模式对错误消息分类。
func Classify(message string) model.ErrorType {
	for _, c := range classifications {
		if c.re.MatchString(message) {
			return c.errorType
		}
	}
	return model.ErrorTypeUnknown
}

// ExtractStack pulls an embedded stack trace out of the message, truncated
// to maxStackTrace characters. Empty when no pattern matches.
// ExtractStack 从消息中提取内嵌的堆栈跟踪，截断到 maxStackTrace 个字符。
// 无匹配时返回空。
func ExtractStack(message string) string {
	for _, re := range stackPatterns {
		if m := re.FindString(message); m != "" {
			if len(m) > maxStackTrace {
				return m[:maxStackTrace]
			}
			return m
		}
	}
	return ""
}
