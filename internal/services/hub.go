package services

import (
	"sync"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

// Update is pushed to live subscribers after samples are stored
type Update struct {
	Type     string             `json:"type"`
	Summary  aggregate.Summary  `json:"summary"`
	Episodes []timeline.Episode `json:"episodes"`
}

const updateBuffer = 8

// Hub fans session updates out to subscribers. Slow subscribers miss
// updates rather than block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Update]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers for updates of a session. The returned function
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Update, func()) {
	ch := make(chan Update, updateBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Update]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(sessionID, ch) })
	}
}

func (h *Hub) unsubscribe(sessionID string, ch chan Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sessionID][ch]; !ok {
		return
	}
	delete(h.subs[sessionID], ch)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
	close(ch)
}

// HasSubscribers reports whether anyone listens to a session
func (h *Hub) HasSubscribers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID]) > 0
}

// Publish delivers u to every subscriber of the session without blocking
func (h *Hub) Publish(sessionID string, u Update) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs[sessionID] {
		select {
		case ch <- u:
			delivered++
		default:
		}
	}
	return delivered
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, id)
	}
}
