package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub fans session updates out to WebSocket clients, grouped by session.
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	mu         sync.RWMutex
}

// Client is one WebSocket connection watching a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID uint
}

// BroadcastMessage carries one update for a session's watchers.
type BroadcastMessage struct {
	SessionID uint        `json:"session_id"`
	Payload   interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced at the router level; the gateway fronts this service.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	GlobalHub *Hub
	hubOnce   sync.Once
)

func init() {
	hubOnce.Do(func() {
		GlobalHub = &Hub{
			clients:    make(map[uint]map[*Client]bool),
			register:   make(chan *Client),
			unregister: make(chan *Client),
			broadcast:  make(chan *BroadcastMessage, 64),
		}
		go GlobalHub.run()
	})
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; !ok {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.sessionID)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Payload)
			if err != nil {
				log.Printf("failed to marshal broadcast message: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients[message.SessionID] {
				select {
				case client.send <- data:
				default:
					// Slow consumer, drop the connection.
					close(client.send)
					delete(h.clients[message.SessionID], client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades GET /api/sessions/:id/ws to a WebSocket feed of
// result updates.
func HandleWebSocket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:       GlobalHub,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: id,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastSessionUpdate queues an update for all WebSocket watchers of the
// session. Non-blocking: if the hub is saturated the update is dropped.
func BroadcastSessionUpdate(sessionID uint, payload interface{}) {
	message := &BroadcastMessage{
		SessionID: sessionID,
		Payload:   payload,
	}
	select {
	case GlobalHub.broadcast <- message:
	default:
		log.Printf("websocket broadcast channel full, dropping update for session %d", sessionID)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
