package events

import (
	"context"
	"sync"

	"github.com/yourorg/listing-sync/internal/listing"
)

// AgentResolved is emitted once per listing when its agent detail lands.
type AgentResolved struct {
	SearchID  uint64              `json:"searchId"`
	ListingID string              `json:"listingId"`
	Agent     listing.AgentDetail `json:"listingAgent"`
	YearBuilt int                 `json:"yearBuilt,omitempty"`
}

type Publisher interface {
	PublishAgentResolved(ctx context.Context, evt AgentResolved)
	SubscribeAgentResolved(buffer int) (<-chan AgentResolved, func())
}

// Hub fans each event out to every subscriber. Slow subscribers lose events
// rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan AgentResolved]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan AgentResolved]struct{})}
}

func (h *Hub) PublishAgentResolved(_ context.Context, evt AgentResolved) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscribeAgentResolved returns a channel of future events and a func that
// unsubscribes and closes it. The func is safe to call more than once.
func (h *Hub) SubscribeAgentResolved(buffer int) (<-chan AgentResolved, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan AgentResolved, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
