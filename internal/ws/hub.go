package ws

import (
	"sync"
	"time"

	"github.com/oernster/printer-launcher/internal/logger"
)

// Hub fans launcher events (tool status changes, captured tool output,
// launcher log entries) out to websocket subscribers. Subscribers hand in a
// buffered channel; a subscriber that cannot drain it loses messages rather
// than stalling delivery to everyone else.
type Hub struct {
	log *logger.Logger

	mu      sync.Mutex
	subs    map[string]chan Message
	dropped map[string]uint64
	closed  bool
}

// NewHub creates a hub. log may be nil; dropped-message warnings are then
// silent.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log,
		subs:    make(map[string]chan Message),
		dropped: make(map[string]uint64),
	}
}

// Register adds a subscriber channel under id. The channel should be
// buffered; it is closed by Unregister or Stop. Registering on a stopped hub
// closes the channel immediately so the subscriber's writer loop exits.
func (h *Hub) Register(id string, ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return
	}
	if old, ok := h.subs[id]; ok {
		close(old)
	}
	h.subs[id] = ch
	delete(h.dropped, id)
}

// Unregister removes the subscriber with the given id and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
		delete(h.dropped, id)
	}
}

// Broadcast delivers msg to every subscriber without blocking. Subscribers
// with a full buffer are skipped and counted.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.dropped[id]++
			if h.log != nil {
				h.log.WarnRateLimited("ws-drop-"+id, 30*time.Second,
					"Websocket subscriber is not keeping up, dropping messages",
					"subscriber", id, "dropped", h.dropped[id])
			}
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stop closes every subscriber channel. Further Broadcast calls are no-ops
// and further Register calls are refused.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
