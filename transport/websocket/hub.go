package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/snake-duel/server/game/broker"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. State snapshots carry full
	// snake bodies, so this is roomier than a chat server would need.
	maxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound payloads. The code field mirrors the original client protocol;
// the broker validates it against the sender's registered session.
type joinRequest struct {
	Code string `json:"code"`
}

type readyRequest struct {
	Code string `json:"code"`
}

type moveRequest struct {
	Code      string `json:"code"`
	Direction string `json:"direction"`
}

type snapshotRequest struct {
	Code   string          `json:"code"`
	Snakes json.RawMessage `json:"snakes"`
	Food   json.RawMessage `json:"food"`
	Scores json.RawMessage `json:"scores"`
}

type diedRequest struct {
	Code string `json:"code"`
}

// EventHandler is the broker-side contract the hub dispatches into.
type EventHandler interface {
	Connect() uuid.UUID
	CreateSession(connID uuid.UUID)
	JoinSession(connID uuid.UUID, code string)
	PlayerReady(connID uuid.UUID, code string)
	Move(connID uuid.UUID, code, direction string)
	StateSnapshot(connID uuid.UUID, code string, snakes, food, scores json.RawMessage)
	PlayerDied(connID uuid.UUID, code string)
	Disconnect(connID uuid.UUID)
}

// Client represents one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   uuid.UUID
}

// Hub maintains the set of active clients keyed by connection identity and
// delivers outbound events. It implements broker.Sender.
type Hub struct {
	clients map[uuid.UUID]*Client
	mu      sync.Mutex

	handler EventHandler
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
	}
}

// SetHandler wires the broker in after construction. The hub and broker
// reference each other, so one of the two links is set late.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// ServeWS handles a WebSocket upgrade request. The client is registered
// before the greeting is sent so the acknowledgement cannot be dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   h.handler.Connect(),
	}
	h.addClient(client)

	go client.writePump()
	go client.readPump()

	h.Send(client.id, broker.EventConnected, broker.Connected{ConnID: client.id.String()})
}

// Send delivers one event to one connection. Connections that are gone or
// too slow to drain their buffer are skipped; the broker's delivery contract
// is best-effort.
func (h *Hub) Send(connID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s payload: %v", event, err)
		return
	}
	frame, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s envelope: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case client.send <- frame:
	default:
		// Client's send buffer is full; cut it loose. Closing the send
		// channel stops writePump, which closes the socket and lets
		// readPump run the disconnect path.
		delete(h.clients, connID)
		close(client.send)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// addClient registers a client under its connection identity.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Client %s connected (total clients: %d)", client.id, total)
}

// removeClient drops a client if it is still registered.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// readPump pumps messages from the WebSocket connection to the broker.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		c.hub.handler.Disconnect(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		c.dispatch(raw)
	}
}

// dispatch decodes one inbound frame and routes it to the broker. Malformed
// frames affect only this message, never the connection or other sessions.
func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Malformed frame from %s: %v", c.id, err)
		return
	}

	switch env.Type {
	case "create_session":
		c.hub.handler.CreateSession(c.id)

	case "join_session":
		var req joinRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Malformed join_session from %s: %v", c.id, err)
			return
		}
		c.hub.handler.JoinSession(c.id, req.Code)

	case "player_ready":
		var req readyRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Malformed player_ready from %s: %v", c.id, err)
			return
		}
		c.hub.handler.PlayerReady(c.id, req.Code)

	case "move":
		var req moveRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Malformed move from %s: %v", c.id, err)
			return
		}
		c.hub.handler.Move(c.id, req.Code, req.Direction)

	case "state_snapshot":
		var req snapshotRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Malformed state_snapshot from %s: %v", c.id, err)
			return
		}
		c.hub.handler.StateSnapshot(c.id, req.Code, req.Snakes, req.Food, req.Scores)

	case "player_died":
		var req diedRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Malformed player_died from %s: %v", c.id, err)
			return
		}
		c.hub.handler.PlayerDied(c.id, req.Code)

	default:
		log.Printf("Unhandled message type %q from %s", env.Type, c.id)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
