package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

// Client is one websocket viewer of the game state.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// StateHub fans committed game states out to websocket clients.
type StateHub struct {
	logger     zerolog.Logger
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

func NewStateHub(logger zerolog.Logger) *StateHub {
	return &StateHub{
		logger:     logger.With().Str("component", "hub").Logger(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan []byte, 256),
	}
}

// Attach subscribes the hub to the store. The returned func detaches it.
func (h *StateHub) Attach(st *store.Store) func() {
	return st.Subscribe(func(s *state.GameState) {
		h.BroadcastState(s)
	})
}

// Run serves registrations and broadcasts until ctx is done.
func (h *StateHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *StateHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Info().Str("client", client.ID).Int("total", len(h.clients)).Msg("client connected")
}

func (h *StateHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.logger.Info().Str("client", client.ID).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

func (h *StateHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
}

func (h *StateHub) fanOut(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			h.logger.Warn().Str("client", client.ID).Msg("client send buffer full")
		}
	}
}

// BroadcastState queues the snapshot of s for every client. Drops when the
// hub is saturated so the store is never blocked.
func (h *StateHub) BroadcastState(s *state.GameState) {
	data, err := stateMessage(s)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal state")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping state")
	}
}

func stateMessage(s *state.GameState) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "state",
		"data": state.Serialize(s),
		"time": time.Now().Unix(),
	})
}

func (h *StateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *StateHub) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug().Err(err).Str("client", client.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; viewers do not send commands.
func (h *StateHub) readPump(client *Client) {
	defer func() { h.unregister <- client }()
	client.Conn.SetReadLimit(512)
	_ = client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client", client.ID).Msg("unexpected close")
			}
			return
		}
	}
}
