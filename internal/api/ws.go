package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/logward/logward/internal/utils/logger"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	// must be shorter than wsPongWait
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWS attaches one WebSocket client to the broadcast hub. Every
// persisted event is pushed as a JSON frame; slow clients lose frames at
// the hub rather than stalling the pipeline.
// handleWS 将一个 WebSocket 客户端接到广播 hub。每条已落盘事件作为 JSON
// 帧推送；慢客户端在 hub 侧丢帧，不会拖慢管线。
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(nil)
	if s.opts.Hub == nil {
		http.Error(w, "Live stream not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	sub := s.opts.Hub.Subscribe()
	log.Infof("📡 WebSocket connected (subscribers=%d)", s.opts.Hub.Count())

	// Read pump: drains client frames and enforces the pong deadline.
	// 读取泵：排空客户端帧并执行 pong 截止时间。
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
		log.Infof("📴 WebSocket disconnected (subscribers=%d)", s.opts.Hub.Count())
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
