package api

import (
	"net/http"
	"strings"
)

// withAuth gates a handler behind the configured API token. Bearer header
// first, then the X-Logward-Token header and the legacy query parameter.
// An empty configured token disables authentication entirely.
// withAuth 将处理器置于配置的 API 令牌之后。先检查 Bearer 头，再检查
// X-Logward-Token 头与旧查询参数。未配置令牌时完全关闭认证。
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := s.opts.Config.Token
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			if strings.TrimPrefix(authHeader, "Bearer ") == expected {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := r.Header.Get("X-Logward-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != "" && token == expected {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
