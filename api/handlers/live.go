package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The map frontend connects from a different origin than the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CounterUpdate is pushed to live watchers whenever an entity's piece
// counters change
type CounterUpdate struct {
	EntityID      string `json:"entityId"`
	Collection    string `json:"collection"`
	TotalPieces   int64  `json:"totalPieces"`
	PendingPieces int64  `json:"pendingPieces"`
}

type liveClient struct {
	conn *websocket.Conn
	// entity ids this client watches
	watching map[string]bool
	mu       sync.Mutex
}

// LiveHub fans counter updates out to websocket clients. Clients subscribe to
// individual missions or challenges by id and only receive updates for those.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[*liveClient]bool
}

// NewLiveHub creates an empty hub
func NewLiveHub() *LiveHub {
	return &LiveHub{clients: make(map[*liveClient]bool)}
}

type liveRequest struct {
	Action   string `json:"action"`
	EntityID string `json:"entityId"`
}

// HandleLiveWebSocket upgrades the connection and serves watch/unwatch
// requests until the client disconnects
func (h *LiveHub) HandleLiveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade live websocket", "error", err)
		return
	}

	client := &liveClient{conn: conn, watching: make(map[string]bool)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	zap.S().Debugw("live client connected", "remoteAddr", conn.RemoteAddr().String())

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
		zap.S().Debugw("live client disconnected", "remoteAddr", conn.RemoteAddr().String())
	}()

	for {
		var req liveRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.EntityID == "" {
			continue
		}
		client.mu.Lock()
		switch req.Action {
		case "watch":
			client.watching[req.EntityID] = true
		case "unwatch":
			delete(client.watching, req.EntityID)
		}
		client.mu.Unlock()
	}
}

// BroadcastCounters sends a counter update to every client watching the
// entity. Slow or broken clients are skipped, not waited on.
func (h *LiveHub) BroadcastCounters(entityID string, update CounterUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.mu.Lock()
		watching := client.watching[entityID]
		if watching {
			if err := client.conn.WriteJSON(update); err != nil {
				zap.S().Debugw("failed to write live counter update",
					"entityID", entityID,
					"error", err)
			}
		}
		client.mu.Unlock()
	}
}
