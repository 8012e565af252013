package events

import (
	"overlay-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Hub fans committed overlay changes out to every subscriber. A subscriber
// whose queue is full misses the event rather than stalling the publisher;
// clients recover by refreshing the catalog.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan core.ChangeEvent
	nextID uint64
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan core.ChangeEvent)}
}

func (h *Hub) Publish(event core.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			logrus.WithFields(logrus.Fields{
				"subscriber": id,
				"type":       event.Type,
				"overlay_id": event.OverlayID,
			}).Warn("Dropping change event for slow subscriber")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func closes the
// channel and is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan core.ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan core.ChangeEvent, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	logrus.WithField("subscriber", id).Debug("Change feed subscribed")

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
