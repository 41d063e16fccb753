package webmonitor

import (
	"sync"

	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
)

// FrameBroadcaster fans annotated JPEG frames out to stream clients.
// Publishing is non-blocking: a slow client just misses frames.
type FrameBroadcaster struct {
	log     *logger.Logger
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

func NewFrameBroadcaster(log *logger.Logger) *FrameBroadcaster {
	return &FrameBroadcaster{
		log:     log,
		clients: make(map[int]chan []byte),
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	fb.clients[id] = ch

	fb.log.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		fb.log.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// ClientCount returns the number of connected clients. The pipeline skips
// annotation work when nobody is watching.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Publish sends a frame to all clients, skipping any whose buffer is full.
func (fb *FrameBroadcaster) Publish(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// Close disconnects all clients.
func (fb *FrameBroadcaster) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
}

// EventBroadcaster fans pre-serialized JSON events out to SSE clients.
// Events are marshaled once by the publisher, not per client.
type EventBroadcaster struct {
	log     *logger.Logger
	name    string
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

func NewEventBroadcaster(name string, log *logger.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		log:     log,
		name:    name,
		clients: make(map[int]chan []byte),
	}
}

// Subscribe adds a new client and returns a channel for receiving events.
func (eb *EventBroadcaster) Subscribe() (int, <-chan []byte) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 events to avoid blocking
	eb.clients[id] = ch

	eb.log.Debug(eb.name, "Client #%d subscribed (total clients: %d)", id, len(eb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (eb *EventBroadcaster) Unsubscribe(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, ok := eb.clients[id]; ok {
		close(ch)
		delete(eb.clients, id)
		eb.log.Debug(eb.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(eb.clients))
	}
}

// ClientCount returns the number of connected clients.
func (eb *EventBroadcaster) ClientCount() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients)
}

// Publish sends an event to all clients, skipping any whose buffer is full.
func (eb *EventBroadcaster) Publish(data []byte) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, ch := range eb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this event for this client
		}
	}
}

// Close disconnects all clients.
func (eb *EventBroadcaster) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, ch := range eb.clients {
		close(ch)
		delete(eb.clients, id)
	}
}
