package api

import (
	"context"
	"sync"

	"github.com/orchardfi/advisor/internal/actions"
)

// Hub fans replies out to per-room WebSocket subscribers. Slow subscribers
// drop replies rather than block a turn.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan actions.Reply]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan actions.Reply]struct{}{}}
}

// Subscribe returns a channel of replies for one room. The subscription ends
// with ctx.
func (h *Hub) Subscribe(ctx context.Context, roomID string) <-chan actions.Reply {
	ch := make(chan actions.Reply, 16)

	h.mu.Lock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = map[chan actions.Reply]struct{}{}
	}
	h.subs[roomID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[roomID], ch)
		if len(h.subs[roomID]) == 0 {
			delete(h.subs, roomID)
		}
		h.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Publish delivers replies to every subscriber of the room.
func (h *Hub) Publish(roomID string, replies []actions.Reply) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[roomID] {
		for _, reply := range replies {
			select {
			case ch <- reply:
			default:
			}
		}
	}
}
