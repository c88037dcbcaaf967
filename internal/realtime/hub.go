package realtime

import (
	"sync"

	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
)

// hub is the in-process room table. Every connection belongs to exactly one
// room for its lifetime.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*conn]struct{})}
}

func (h *hub) join(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*conn]struct{})
		h.rooms[c.room] = members
	}
	members[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
}

// leave reports whether c was still a member.
func (h *hub) leave(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	metrics.RealtimeConnections.Dec()
	return true
}

func (h *hub) size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// broadcast queues frame on every member of room and returns how many
// connections accepted it. A member whose queue is full misses the frame.
func (h *hub) broadcast(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[room] {
		if c.enqueue(frame) {
			n++
		} else {
			metrics.RealtimeEventsDropped.Inc()
		}
	}
	return n
}

// snapshot returns every current member.
func (h *hub) snapshot() []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*conn
	for _, members := range h.rooms {
		for c := range members {
			out = append(out, c)
		}
	}
	return out
}
