package handlers

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The heartbeat loop and the event consumer write the same response writer;
// the per-client write lock must keep their frames whole.
func TestSSEConcurrentWritesKeepFramesWhole(t *testing.T) {
	recorder := httptest.NewRecorder()
	client := &SSEClient{
		SessionID: 42,
		Writer:    recorder,
		Flusher:   recorder,
		Done:      make(chan bool, 1),
	}

	sseClientsMu.Lock()
	sseClients[client.SessionID] = append(sseClients[client.SessionID], client)
	sseClientsMu.Unlock()
	defer unregisterSSEClient(client)

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			BroadcastSSEUpdate(client.SessionID, map[string]interface{}{"round": i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, client.write([]byte(": ping\n\n")))
		}
	}()
	wg.Wait()

	dataFrames := 0
	pings := 0
	for _, line := range strings.Split(recorder.Body.String(), "\n") {
		switch {
		case line == "":
		case line == ": ping":
			pings++
		case strings.HasPrefix(line, "data: {"):
			dataFrames++
		default:
			t.Fatalf("interleaved frame: %q", line)
		}
	}
	assert.Equal(t, rounds, dataFrames)
	assert.Equal(t, rounds, pings)
}
