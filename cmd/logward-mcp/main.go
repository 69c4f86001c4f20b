package main

import (
	"flag"
	"log"
	"os"

	"github.com/logward/logward/internal/mcp"
)

func main() {
	// The MCP server is a thin stdio bridge onto a running logward
	// instance's HTTP API.
	// MCP 服务器是运行中 logward 实例 HTTP API 之上的瘦 stdio 桥。
	baseURL := flag.String("server", envOr("LOGWARD_URL", "http://127.0.0.1:8000"), "Base URL of the logward server")
	token := flag.String("token", os.Getenv("LOGWARD_TOKEN"), "Bearer token for the API")
	flag.Parse()

	server := mcp.NewServer(*baseURL, *token)
	if err := server.Serve(); err != nil {
		log.Fatalf("❌ MCP server error: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
