// Package realtime pushes bracket changes to websocket subscribers. Each
// tournament has its own room.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	MessageBracketUpdated      = "BRACKET_UPDATED"
	MessageMatchUpdated        = "MATCH_UPDATED"
	MessageTournamentUpdated   = "TOURNAMENT_UPDATED"
	MessageTournamentCompleted = "TOURNAMENT_COMPLETED"
	MessageTournamentCancelled = "TOURNAMENT_CANCELLED"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

func TournamentRoom(tournamentID uuid.UUID) string {
	return "tournament_" + tournamentID.String()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run owns room membership until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			slog.Debug("websocket client joined", "room", client.room, "clients", len(h.rooms[client.room]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.rooms {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	slog.Debug("websocket client left", "room", client.room)
}

// BroadcastToRoom sends message to every client in the room. Slow clients
// whose buffers are full miss the message.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		slog.Error("failed to marshal websocket message", "room", roomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- data:
		default:
			slog.Warn("websocket client buffer full, dropping message", "room", roomID)
		}
	}
}

// Publish broadcasts a typed message to the tournament's room.
func (h *Hub) Publish(tournamentID uuid.UUID, messageType string, payload interface{}) {
	room := TournamentRoom(tournamentID)
	h.BroadcastToRoom(room, Message{Type: messageType, Payload: payload, RoomID: room})
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ServeWS upgrades the request and subscribes the connection to roomID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "room", roomID, "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: roomID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		// Subscribers only listen; anything they send is discarded.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket closed unexpectedly", "room", c.room, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("websocket write failed", "room", c.room, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
