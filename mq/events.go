package mq

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"lunch-voting-backend/cache"

	"github.com/google/uuid"
)

// Event types published on the bus.
const (
	EventVoteCast         = "vote_cast"
	EventSessionActivated = "session_activated"
	EventSessionClosed    = "session_closed"
)

// Event is a domain notification fanned out to live subscribers (SSE,
// WebSocket) after a state change commits.
type Event struct {
	Type      string `json:"type"`
	SessionID uint   `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// Handler processes one event. Returning an error requeues the event up to
// the retry budget.
type Handler func(event Event) error

// EventBus decouples the write path from live fan-out. With Redis available
// it runs on a durable Redis list queue shared across instances; without it
// it degrades to an in-process channel.
type EventBus struct {
	redisQueue *redisQueue
	memCh      chan Event
	handler    Handler
	stopOnce   sync.Once
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewEventBus creates the bus, choosing the Redis queue when a connection
// exists.
func NewEventBus() *EventBus {
	bus := &EventBus{
		stopChan: make(chan struct{}),
	}
	if client, err := cache.GetClient(); err == nil {
		bus.redisQueue = newRedisQueue(client)
		log.Println("event bus using redis queue")
	} else {
		bus.memCh = make(chan Event, 256)
		log.Println("event bus using in-process queue")
	}
	return bus
}

// Publish enqueues an event. Never blocks the caller: when the in-process
// queue is full the event is dropped with a log line, since live fan-out is
// best effort.
func (b *EventBus) Publish(eventType string, sessionID uint, userID string) error {
	event := Event{
		Type:      eventType,
		SessionID: sessionID,
		UserID:    userID,
		MessageID: uuid.New().String(),
		Timestamp: time.Now().Unix(),
	}
	if b.redisQueue != nil {
		return b.redisQueue.push(event)
	}
	select {
	case b.memCh <- event:
		return nil
	default:
		log.Printf("event queue full, dropping %s for session %d", eventType, sessionID)
		return nil
	}
}

// RegisterHandler sets the consumer and starts the consume loop. Must be
// called exactly once before events are expected to flow.
func (b *EventBus) RegisterHandler(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler must not be nil")
	}
	b.handler = handler
	if b.redisQueue != nil {
		b.redisQueue.registerHandler(handler)
		return b.redisQueue.start()
	}
	b.wg.Add(1)
	go b.memConsumeLoop()
	return nil
}

func (b *EventBus) memConsumeLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopChan:
			return
		case event := <-b.memCh:
			if err := b.handler(event); err != nil {
				log.Printf("event handler failed for %s: %v", event.MessageID, err)
			}
		}
	}
}

// Close stops the consumer and drains in-flight work.
func (b *EventBus) Close() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		if b.redisQueue != nil {
			b.redisQueue.stop()
		}
		b.wg.Wait()
		log.Println("event bus stopped")
	})
}

func marshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
