package query

import (
	"sync"
	"time"

	"github.com/docshelf/docshelf/internal/metrics"
)

// EventType names a cache entry transition.
type EventType string

const (
	EventFetching    EventType = "fetching"
	EventResolved    EventType = "resolved"
	EventFailed      EventType = "failed"
	EventInvalidated EventType = "invalidated"
)

// Event reports a transition of one cache entry.
type Event struct {
	Type  EventType
	Key   Key
	State State
	At    time.Time
}

// broadcaster fans events out to subscribers.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// subscribe adds a subscriber. A closed broadcaster hands out a closed channel.
func (b *broadcaster) subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[ch] = struct{}{}
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetCacheSubscribers(n)
	return ch
}

// unsubscribe removes a subscriber and closes its channel.
func (b *broadcaster) unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
			break
		}
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetCacheSubscribers(n)
}

// publish never blocks; slow consumers miss events.
func (b *broadcaster) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Event]struct{})
	metrics.SetCacheSubscribers(0)
}
