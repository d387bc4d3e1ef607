package socket

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// Events buffered per driver before the feed is considered stalled.
	sendBuffer = 32
)

// ErrSlowClient is reported for a driver dropped because its feed stalled.
var ErrSlowClient = errors.New("board client too slow")

type client struct {
	conn *websocket.Conn
	slot domain.TimeSlot
	send chan []byte
}

func newClient(conn *websocket.Conn, slot domain.TimeSlot, buffer int) *client {
	return &client{conn: conn, slot: slot, send: make(chan []byte, buffer)}
}

func (c *client) wants(e ports.Event) bool {
	return c.slot == "" || c.slot == e.Slot
}

// writePump is the connection's only writer of data frames. It exits when
// send is closed; after a failed write it discards until then.
func (c *client) writePump(log *slog.Logger, driverID string) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Warn("board push failed", "driver_id", driverID, "err", err)
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// Hub keeps one board feed per driver and pushes dispatch events to it.
// Publish never waits on a socket: each driver has a buffered queue drained
// by its own writer, and a driver whose queue fills up is disconnected.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
	log     *slog.Logger
	buffer  int
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
		buffer:  sendBuffer,
	}
}

// Register attaches a driver's connection, replacing any older one.
// An empty slot subscribes to every slot.
func (h *Hub) Register(driverID string, slot domain.TimeSlot, conn *websocket.Conn) {
	c := newClient(conn, slot, h.buffer)

	h.mu.Lock()
	old := h.clients[driverID]
	h.clients[driverID] = c
	if old != nil {
		close(old.send)
	}
	h.mu.Unlock()

	if old != nil {
		_ = old.conn.Close()
	}
	go c.writePump(h.log, driverID)
	h.log.Info("board client registered", "driver_id", driverID, "slot", slot)
}

// Unregister removes the driver's connection if it is still conn.
func (h *Hub) Unregister(driverID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[driverID]; ok && c.conn == conn {
		delete(h.clients, driverID)
		close(c.send)
		h.log.Info("board client unregistered", "driver_id", driverID)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// drop disconnects a stalled client if it is still registered.
func (h *Hub) drop(driverID string, c *client) {
	h.mu.Lock()
	cur, ok := h.clients[driverID]
	if ok && cur == c {
		delete(h.clients, driverID)
		close(c.send)
	}
	h.mu.Unlock()

	if ok && cur == c {
		_ = c.conn.Close()
	}
}

// Publish queues the event for every driver watching its slot. A driver that
// cannot keep up is dropped and reported; the others still get the event.
func (h *Hub) Publish(ctx context.Context, e ports.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode board event: %w", err)
	}

	// Sends happen under the read lock; send channels close under the write lock.
	stalled := make(map[string]*client)
	h.mu.RLock()
	for id, c := range h.clients {
		if !c.wants(e) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			stalled[id] = c
		}
	}
	h.mu.RUnlock()

	var errs []error
	for id, c := range stalled {
		h.drop(id, c)
		h.log.WarnContext(ctx, "board client dropped", "driver_id", id, "buffer", cap(c.send))
		errs = append(errs, fmt.Errorf("driver %s: %w", id, ErrSlowClient))
	}
	return errors.Join(errs...)
}
