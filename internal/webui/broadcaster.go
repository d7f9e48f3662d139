package webui

import (
	"sync"

	"github.com/review3/liveness-cam/internal/logger"
)

// FrameBroadcaster fans annotated JPEG frames out to stream clients. It is
// the render loop's sink: Publish replaces the current picture, Reset clears
// it when the session ends so late frames never linger on screen.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	last    []byte
}

// NewFrameBroadcaster creates an empty broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		clients: make(map[int]chan []byte),
	}
}

// Subscribe adds a client and returns a channel of encoded frames. The
// current picture, if any, is queued immediately.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	if fb.last != nil {
		ch <- fb.last
	}
	fb.clients[id] = ch

	logger.Debug("Broadcaster", "client #%d subscribed (total: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("Broadcaster", "client #%d unsubscribed (remaining: %d)", id, len(fb.clients))
	}
}

// ClientCount returns the number of connected stream clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Publish delivers a frame to every client. Slow clients skip frames rather
// than stall the render loop.
func (fb *FrameBroadcaster) Publish(jpegData []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.last = jpegData
	for _, ch := range fb.clients {
		select {
		case ch <- jpegData:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// Reset clears the current picture; clients receive a nil frame, which the
// stream writer renders as the blank pattern.
func (fb *FrameBroadcaster) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.last = nil
	for _, ch := range fb.clients {
		select {
		case ch <- nil:
		default:
		}
	}
}

// Last returns the most recently published frame, or nil.
func (fb *FrameBroadcaster) Last() []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.last
}
