package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Listener is notified when an item becomes buildable. It runs on the
// goroutine that scheduled the item, shared with every other listener, so it
// must return quickly and must not block.
type Listener interface {
	OnEnterBuildable(item *Item)
}

type ListenerFunc func(item *Item)

func (f ListenerFunc) OnEnterBuildable(item *Item) {
	f(item)
}

type Queue struct {
	log    *slog.Logger
	events *broadcaster

	mu        sync.RWMutex
	nextID    uint64
	items     map[uint64]*Item
	listeners []Listener
}

func NewQueue(config Config) *Queue {
	log := config.logger()
	return &Queue{
		log:    log,
		events: newBroadcaster(config.EventBuffer, log),
		items:  make(map[uint64]*Item),
	}
}

func (q *Queue) AddListener(listener Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, listener)
}

func (q *Queue) Subscribe() (<-chan Event, func()) {
	return q.events.Subscribe()
}

// Schedule queues task and notifies listeners before returning.
func (q *Queue) Schedule(task Task, requirement Requirement) *Item {
	q.mu.Lock()
	q.nextID += 1
	item := &Item{
		id:          q.nextID,
		task:        task,
		requirement: requirement,
		queuedAt:    time.Now(),
	}
	q.items[item.id] = item
	q.mu.Unlock()

	q.log.Info("Item queued", "item", item.id, "task", task.FQN(), "requirement", requirement)
	q.events.broadcast(EventItemQueued{Item: item.id, Task: task.FQN(), Requirement: requirement.String()})

	q.dispatch(item)
	return item
}

// Redeliver notifies listeners again for an item still in the queue.
func (q *Queue) Redeliver(id uint64) bool {
	item, ok := q.Get(id)
	if !ok {
		return false
	}

	q.log.Debug("Redelivering item", "item", id)
	q.dispatch(item)
	return true
}

// Cancel removes an item from the queue. Work already handed off for the item
// is not interrupted.
func (q *Queue) Cancel(id uint64) (*Item, bool) {
	q.mu.Lock()
	item, ok := q.items[id]
	delete(q.items, id)
	q.mu.Unlock()

	if !ok {
		return nil, false
	}

	q.log.Info("Item cancelled", "item", id, "task", item.task.FQN())
	q.events.broadcast(EventItemLeft{Item: id, Task: item.task.FQN(), Cancelled: true})
	return item, true
}

func (q *Queue) Get(id uint64) (*Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	item, ok := q.items[id]
	return item, ok
}

// Items returns the queued items in queue order.
func (q *Queue) Items() []*Item {
	q.mu.RLock()
	items := lo.Values(q.items)
	q.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].id < items[j].id
	})
	return items
}

func (q *Queue) dispatch(item *Item) {
	q.mu.RLock()
	listeners := append([]Listener(nil), q.listeners...)
	q.mu.RUnlock()

	for _, listener := range listeners {
		q.notify(listener, item)
	}
}

func (q *Queue) notify(listener Listener, item *Item) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Queue listener panicked", "item", item.id, "panic", r)
		}
	}()
	listener.OnEnterBuildable(item)
}
