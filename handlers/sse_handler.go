package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lunch-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// SSEClient is one open event-stream connection watching a session.
type SSEClient struct {
	SessionID uint
	Writer    http.ResponseWriter
	Flusher   http.Flusher
	Done      chan bool

	// writeMu serializes frames: the handler's heartbeat and the event
	// consumer's broadcasts share this writer.
	writeMu sync.Mutex
}

// write emits one complete frame and flushes it while holding the client's
// write lock, so concurrent writers never interleave frames.
func (c *SSEClient) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.Writer.Write(frame); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

var (
	sseClients   = make(map[uint][]*SSEClient)
	sseClientsMu sync.Mutex
)

// HandleSSE streams live result updates for a session over Server-Sent
// Events. GET /api/sessions/:id/live.
func HandleSSE(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Reject unknown and draft sessions up front.
	results, err := service.ComputeResults(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	client := &SSEClient{
		SessionID: id,
		Writer:    c.Writer,
		Flusher:   flusher,
		Done:      make(chan bool, 1),
	}

	sseClientsMu.Lock()
	sseClients[id] = append(sseClients[id], client)
	sseClientsMu.Unlock()

	// Current standings first so the client starts in sync.
	sendSSEEvent(client, results)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	notify := c.Request.Context().Done()

	for {
		select {
		case <-notify:
			unregisterSSEClient(client)
			return
		case <-client.Done:
			unregisterSSEClient(client)
			return
		case <-heartbeat.C:
			if err := client.write([]byte(": ping\n\n")); err != nil {
				unregisterSSEClient(client)
				return
			}
		}
	}
}

func unregisterSSEClient(client *SSEClient) {
	sseClientsMu.Lock()
	defer sseClientsMu.Unlock()

	clients := sseClients[client.SessionID]
	for i, c := range clients {
		if c == client {
			sseClients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(sseClients[client.SessionID]) == 0 {
		delete(sseClients, client.SessionID)
	}
}

func sendSSEEvent(client *SSEClient, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return client.write([]byte(fmt.Sprintf("data: %s\n\n", jsonData)))
}

// BroadcastSSEUpdate pushes data to every event-stream client watching the
// session.
func BroadcastSSEUpdate(sessionID uint, data interface{}) {
	sseClientsMu.Lock()
	clients := make([]*SSEClient, len(sseClients[sessionID]))
	copy(clients, sseClients[sessionID])
	sseClientsMu.Unlock()

	for _, client := range clients {
		if err := sendSSEEvent(client, data); err != nil {
			select {
			case client.Done <- true:
			default:
			}
		}
	}
}
