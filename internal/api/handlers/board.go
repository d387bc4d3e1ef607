package handlers

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/socket"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Maximum wait for a client ping before the feed is dropped.
const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type SessionLookup interface {
	GetSession(ctx context.Context, driverID string) (domain.DriverSession, error)
}

// BoardHandler streams dispatch board events to a signed-in driver.
type BoardHandler struct {
	Hub      *socket.Hub
	Sessions SessionLookup
}

func (h *BoardHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimSpace(r.URL.Query().Get("driver_id"))
	if driverID == "" {
		writeError(w, r, http.StatusBadRequest, "driver_id is required")
		return
	}

	session, err := h.Sessions.GetSession(r.Context(), driverID)
	if err != nil {
		writeServiceError(w, r, "board feed", err)
		return
	}

	slot := session.TimeSlot
	if q := r.URL.Query().Get("slot"); q != "" {
		if slot, err = domain.ParseTimeSlot(q); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "driver_id", driverID, "err", err)
		return
	}

	h.Hub.Register(driverID, slot, conn)
	defer func() {
		h.Hub.Unregister(driverID, conn)
		conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(r.Context(), "board feed closed", "driver_id", driverID, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
