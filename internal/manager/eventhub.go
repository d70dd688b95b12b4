package manager

import (
	"sync"
	"time"
)

// EventHub fans events out to live subscribers (the /events stream). A slow
// subscriber loses events rather than blocking the publisher.
type EventHub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	buffer int
}

// NewEventHub returns a hub whose subscribers buffer up to buffer events.
func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventHub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			eventsDropped.Inc()
		}
	}
}
