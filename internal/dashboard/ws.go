package dashboard

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ohmynofan/rewards-orchestrator/internal/platform/logger"
)

var wsLog = logger.NewNamed("DashboardWS", nil)

// logHub fans buffered log lines out to every connected websocket client,
// backed by logger's package-level ring buffer and subscriber list.
type logHub struct {
	upgrader websocket.Upgrader
}

func newLogHub() *logHub {
	return &logHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The gateway is an operator console, not a public endpoint —
			// same-origin checks belong to whatever reverse proxy fronts it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleLogsWS streams every new log line to the client as a text frame,
// replaying the current ring buffer first so a fresh connection isn't
// starting blind.
func (gw *Gateway) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	wsLog.JustLog("log stream " + connID + " connected")
	defer wsLog.JustLog("log stream " + connID + " disconnected")

	for _, line := range logger.RecentLines(200) {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
			return
		}
	}

	lines := make(chan string, 64)
	logger.Subscribe(lines)
	defer logger.Unsubscribe(lines)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case line := <-lines:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if conn.WriteMessage(websocket.PingMessage, nil) != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
