package scheduler

import (
	"log/slog"
	"sync"
)

type Event interface{}

// Queue

type EventItemQueued struct {
	Item        uint64
	Task        string
	Requirement string
}

type EventItemLeft struct {
	Item      uint64
	Task      string
	Cancelled bool
}

// Nodes

type EventNodeRegistered struct {
	Node  string
	Label string
	Job   string
}

type EventNodeRemoved struct {
	Node string
}

// broadcaster fans events out to subscribers without ever blocking the
// emitter. A subscriber whose buffer is full misses the event.
type broadcaster struct {
	buffer int
	log    *slog.Logger

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func newBroadcaster(buffer int, log *slog.Logger) *broadcaster {
	return &broadcaster{
		buffer:      buffer,
		log:         log,
		subscribers: make(map[chan Event]struct{}),
	}
}

func (b *broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, ch)
			close(ch)
		})
	}
}

func (b *broadcaster) broadcast(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.Warn("Subscriber is lagging, dropping event", "event", event)
		}
	}
}
