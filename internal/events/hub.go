package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"hearthrealm/internal/db"
)

// Resync is delivered to every subscriber after the listener reconnects;
// clients should refetch state because notifications may have been lost.
var Resync = []byte(`{"kind":"resync"}`)

// Hub fans world-event notifications out to websocket subscribers.
type Hub struct {
	log *slog.Logger

	mu   sync.Mutex
	next int
	subs map[int]*Subscription
}

type Subscription struct {
	id       int
	location int64
	C        chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, subs: make(map[int]*Subscription)}
}

// Subscribe registers a subscriber. A non-zero location limits delivery to
// events for that location plus world-wide events.
func (h *Hub) Subscribe(location int64, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	sub := &Subscription{id: h.next, location: location, C: make(chan []byte, buffer)}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.C)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers one raw event payload. Slow subscribers miss events
// rather than stall the hub.
func (h *Hub) Publish(payload []byte) {
	var head struct {
		Kind       string `json:"kind"`
		LocationID int64  `json:"location_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		h.log.Warn("dropping malformed event", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.location != 0 && head.LocationID != 0 && head.LocationID != sub.location {
			continue
		}
		select {
		case sub.C <- payload:
		default:
			h.log.Debug("subscriber behind, event dropped", "kind", head.Kind)
		}
	}
}

// Run feeds the hub from a LISTEN stream until ctx ends or the stream
// closes.
func (h *Hub) Run(ctx context.Context, in <-chan db.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			if n.Channel == "" {
				h.Publish(Resync)
				continue
			}
			if n.Channel == db.ChannelEvents {
				h.Publish([]byte(n.Payload))
			}
		}
	}
}
