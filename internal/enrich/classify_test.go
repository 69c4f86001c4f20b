package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify 验证错误消息按优先级分类 / verifies error messages bucket by priority.
func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"connection refused", "dial tcp 10.0.0.5:5432: connection refused", "CONNECTION_ERROR"},
		{"econnrefused", "Error: connect ECONNREFUSED 127.0.0.1:6379", "CONNECTION_ERROR"},
		{"timeout", "upstream request timeout", "TIMEOUT_ERROR"},
		{"timed out", "operation timed out after 30s", "TIMEOUT_ERROR"},
		{"oom", "container killed: OOM", "MEMORY_ERROR"},
		{"out of memory", "java.lang.OutOfMemoryError: out of memory", "MEMORY_ERROR"},
		{"database", "database connection pool exhausted", "DATABASE_ERROR"},
		{"db error", "db query error: deadlock detected", "DATABASE_ERROR"},
		{"permission", "permission denied on /var/lib/data", "PERMISSION_ERROR"},
		{"forbidden", "GET /admin returned 403 Forbidden", "PERMISSION_ERROR"},
		{"not found", "user record not found", "NOT_FOUND_ERROR"},
		{"404", "upstream returned 404", "NOT_FOUND_ERROR"},
		{"internal server", "internal server error while rendering", "SERVER_ERROR"},
		{"500", "HTTP 500 from billing service", "SERVER_ERROR"},
		{"authentication", "authentication token expired", "AUTHENTICATION_ERROR"},
		{"auth failed", "ldap auth bind failed", "AUTHENTICATION_ERROR"},
		{"unknown", "something exploded for no reason", "UNKNOWN_ERROR"},
		{"empty", "", "UNKNOWN_ERROR"},
		{"case insensitive", "CONNECTION REFUSED by peer", "CONNECTION_ERROR"},
		// connection outranks timeout when both appear
		{"priority", "connection refused (timeout while dialing)", "CONNECTION_ERROR"},
		// timeout outranks database when both appear
		{"priority timeout over db", "database call timed out", "TIMEOUT_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Classify(tt.message)))
		})
	}
}

// TestExtractStack 验证堆栈提取与截断 / verifies stack extraction and truncation.
func TestExtractStack(t *testing.T) {
	t.Run("python traceback", func(t *testing.T) {
		msg := "job failed\nTraceback (most recent call last):\n  File \"app.py\", line 3, in run\nValueError: boom"
		got := ExtractStack(msg)
		assert.True(t, strings.HasPrefix(got, "Traceback (most recent call last):"))
		assert.Contains(t, got, "ValueError: boom")
	})

	t.Run("js frames", func(t *testing.T) {
		msg := "TypeError: x is undefined\n    at handler (/srv/app/index.js:42:13)\n    at process (/srv/app/loop.js:9:5)"
		got := ExtractStack(msg)
		assert.Contains(t, got, "at handler (/srv/app/index.js:42:13)")
	})

	t.Run("no stack", func(t *testing.T) {
		assert.Empty(t, ExtractStack("plain message, nothing to see"))
	})

	t.Run("truncated", func(t *testing.T) {
		msg := "Traceback (most recent call last):\n" + strings.Repeat("  File \"x.py\", line 1, in f\n", 200)
		got := ExtractStack(msg)
		assert.Len(t, got, maxStackTrace)
	})
}
