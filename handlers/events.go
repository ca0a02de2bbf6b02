package handlers

import (
	"context"
	"errors"
	"time"

	"lunch-voting-backend/mq"
	"lunch-voting-backend/service"
)

// HandleEvent is the event bus consumer. For every committed state change
// it recomputes the session's standings and fans them out to the SSE and
// WebSocket watchers. Registered on the bus at startup.
func HandleEvent(event mq.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := service.ComputeResults(ctx, event.SessionID)
	if err != nil {
		// Draft or vanished sessions have nothing to broadcast; don't
		// requeue those events.
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidState) {
			return nil
		}
		return err
	}

	payload := map[string]interface{}{
		"type":      eventPayloadType(event.Type),
		"data":      results,
		"timestamp": time.Now().UnixNano(),
	}

	BroadcastSessionUpdate(event.SessionID, payload)
	BroadcastSSEUpdate(event.SessionID, payload)
	return nil
}

// NotifySessionClosed publishes a close event on behalf of the background
// sweep, which has no request context.
func NotifySessionClosed(sessionID uint) {
	publishEvent(mq.EventSessionClosed, sessionID, "")
}

func eventPayloadType(eventType string) string {
	switch eventType {
	case mq.EventSessionClosed:
		return "SESSION_CLOSED"
	case mq.EventSessionActivated:
		return "SESSION_ACTIVATED"
	default:
		return "RESULTS_UPDATE"
	}
}
