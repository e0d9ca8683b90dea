package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards are served from arbitrary origins
	},
}

const wsWriteTimeout = 10 * time.Second

// handleLiveSocket upgrades the connection and streams merged poller
// snapshots to the client. Each connection owns its own poller; closing
// the socket stops it.
func (s *Server) handleLiveSocket(c echo.Context) error {
	serverIDs, err := parseServerIDs(c.QueryParam("serverIds"), s.config.MaxServersPerRequest)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response
	}

	p := s.pollFactory(serverIDs)
	defer p.Stop()

	// Reader goroutine: discard client frames, detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot := <-p.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snapshot); err != nil {
				slog.Debug("Live socket write failed, closing", "error", err)
				_ = conn.Close()
				<-done
				return nil
			}
		case <-done:
			_ = conn.Close()
			return nil
		}
	}
}
