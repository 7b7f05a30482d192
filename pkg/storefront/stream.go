package storefront

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream carries no mutations; same-origin enforcement happens at
	// the mutation endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// streamHandler pushes every published cart snapshot to the client over a
// websocket, so open views re-render the moment an optimistic prediction or
// an authoritative refresh lands.
// @Summary Cart snapshot stream
// @Router /api/cart/stream [get]
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	engine := s.engineFor(visitorFrom(r.Context()))
	snapshots, cancel := engine.Subscribe()
	defer cancel()

	// Seed the stream with the current state so a freshly opened view is
	// never blank.
	if snapshot, ok := engine.Current(); ok {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}

	// Reader goroutine: we never expect messages, but reading surfaces
	// close frames and connection loss.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snapshot := <-snapshots:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-s.done:
			return
		}
	}
}
