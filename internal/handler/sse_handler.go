package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quickhop/quickhop/internal/events"
	"github.com/redis/go-redis/v9"
)

// SSEHandler fans the Redis change feed out to connected SSE clients.
// Events are signals to re-fetch, so slow clients are skipped rather
// than buffered.
type SSEHandler struct {
	redis   *redis.Client
	clients map[chan []byte]bool
	mu      sync.RWMutex
}

func NewSSEHandler(redisClient *redis.Client) *SSEHandler {
	handler := &SSEHandler{
		redis:   redisClient,
		clients: make(map[chan []byte]bool),
	}

	// Start Redis pub/sub listener
	go handler.startPubSubListener()

	return handler
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.StreamEvents)
}

// StreamEvents handles SSE connections for the dispatch change feed
func (h *SSEHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 10)

	h.registerClient(clientChan)
	defer h.unregisterClient(clientChan)

	fmt.Fprintf(w, "event: connected\ndata: {\"time\": %q}\n\n", time.Now().Format(time.RFC3339))
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-clientChan:
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {\"time\": %q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) registerClient(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ch] = true
}

func (h *SSEHandler) unregisterClient(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ch)
	close(ch)
}

func (h *SSEHandler) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip
		}
	}
}

// startPubSubListener forwards feed messages to every connected client.
func (h *SSEHandler) startPubSubListener() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, events.Channel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.broadcast([]byte(msg.Payload))
	}
}
