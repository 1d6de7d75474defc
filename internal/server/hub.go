package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ldi/taskboard/internal/board"
	log "github.com/sirupsen/logrus"
)

// EventBoardChanged is sent to every websocket client after a mutation.
const EventBoardChanged = "board_changed"

// defaultWriteWait bounds a single write so one stalled client cannot hold
// the hub lock.
const defaultWriteWait = 10 * time.Second

type Event struct {
	Event string      `json:"event"`
	State board.State `json:"state"`
}

// Hub fans board changes out to connected websocket clients.
type Hub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	upgrader    websocket.Upgrader
	writeWait   time.Duration
	log         log.FieldLogger
}

func NewHub(logger log.FieldLogger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeWait: defaultWriteWait,
		log:       logger,
	}
}

// write must be called with mutex held.
func (h *Hub) write(conn *websocket.Conn, message []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, message)
}

// Broadcast sends the new state to all clients. Connections that fail to
// receive it are dropped.
func (h *Hub) Broadcast(ctx context.Context, st board.State) {
	message, err := json.Marshal(Event{Event: EventBoardChanged, State: st})
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal board update")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		if err := h.write(conn, message); err != nil {
			h.log.WithError(err).Warn("Failed to send websocket message")
			delete(h.connections, conn)
			conn.Close()
		}
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away. The current state is sent immediately.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial board.State) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	message, err := json.Marshal(Event{Event: EventBoardChanged, State: initial})
	if err == nil {
		h.mutex.Lock()
		err = h.write(conn, message)
		if err == nil {
			h.connections[conn] = true
		}
		h.mutex.Unlock()
	}
	if err != nil {
		h.log.WithError(err).Warn("Failed to send initial board state")
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.WithError(err).Debug("WebSocket closed")
			h.mutex.Lock()
			delete(h.connections, conn)
			h.mutex.Unlock()
			conn.Close()
			return
		}
	}
}
