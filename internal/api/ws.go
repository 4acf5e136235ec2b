package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docflow/docflow/internal/bus"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHub serves one live-signal WebSocket connection per request, each
// backed directly by a bus.Subscribe feed (spec §4.5's "subscribe to a
// session's signal stream"). Unlike the teacher's WSHub, there is no
// broadcast registry to maintain here: internal/bus already fans out
// per-session with backpressure dropping, so the hub's only job is
// pumping one subscription's channel onto one socket.
type WSHub struct {
	bus *bus.Bus
	log *logger.Logger
}

// NewWSHub returns a hub that subscribes clients against b.
func NewWSHub(b *bus.Bus, log *logger.Logger) *WSHub {
	return &WSHub{bus: b, log: log}
}

// HandleWebSocket upgrades the request and streams sessionID's signals
// until the client disconnects or the request context is canceled.
// Auth: the upgrade request passes through authMiddleware like any
// other route, with ?token= as the fallback since ws:// requests from
// browsers cannot set custom headers.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := domain.SessionID(r.URL.Query().Get("session_id"))
	if sessionID.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.ErrorCF("ws", "upgrade failed", logger.Fields{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	signals, err := h.bus.Subscribe(ctx, sessionID)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	go h.readPump(conn, cancel)
	h.writePump(conn, signals)
}

// readPump drains (and discards) client frames, cancelling the
// subscription once the connection drops — the client never sends
// commands over this socket, only the command API does.
func (h *WSHub) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) writePump(conn *websocket.Conn, signals <-chan domain.Signal) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(sig); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
