package scheduler

import (
	"sync"
	"time"
)

// Action is extra state attached to a queued item by listeners.
type Action interface {
	Kind() string
}

// LabelAssignment binds a queued item to the worker created for it. It is
// immutable once created.
type LabelAssignment struct {
	label string
}

// LabelAssignment implements Action
var _ Action = (*LabelAssignment)(nil)

func NewLabelAssignment(label string) *LabelAssignment {
	return &LabelAssignment{label: label}
}

func (a *LabelAssignment) Kind() string {
	return "label-assignment"
}

func (a *LabelAssignment) Label() string {
	return a.label
}

// Item is a task waiting in the queue.
type Item struct {
	id          uint64
	task        Task
	requirement Requirement
	queuedAt    time.Time

	mu      sync.Mutex
	actions []Action
}

func (i *Item) ID() uint64 {
	return i.id
}

func (i *Item) Task() Task {
	return i.task
}

func (i *Item) Requirement() Requirement {
	return i.requirement
}

func (i *Item) QueuedAt() time.Time {
	return i.queuedAt
}

func (i *Item) AddAction(action Action) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.actions = append(i.actions, action)
}

// Actions returns a copy of the attached actions, in attachment order.
func (i *Item) Actions() []Action {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Action(nil), i.actions...)
}

func (i *Item) RemoveAction(action Action) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx, a := range i.actions {
		if a == action {
			i.actions = append(i.actions[:idx:idx], i.actions[idx+1:]...)
			return true
		}
	}
	return false
}

// ActionsOf returns the attached actions of type A.
func ActionsOf[A Action](item *Item) []A {
	item.mu.Lock()
	defer item.mu.Unlock()
	return actionsOf[A](item.actions)
}

// AttachOnce attaches the action returned by create unless an action of type
// A is already attached, in which case the existing one is returned. The
// check and the attachment happen under the item lock, so concurrent callers
// never attach two. create must be cheap: it runs with the lock held.
func AttachOnce[A Action](item *Item, create func() (A, error)) (action A, created bool, err error) {
	item.mu.Lock()
	defer item.mu.Unlock()

	if existing := actionsOf[A](item.actions); len(existing) > 0 {
		return existing[0], false, nil
	}

	if action, err = create(); err != nil {
		return action, false, err
	}
	item.actions = append(item.actions, action)
	return action, true, nil
}

func actionsOf[A Action](actions []Action) []A {
	var result []A
	for _, a := range actions {
		if typed, ok := a.(A); ok {
			result = append(result, typed)
		}
	}
	return result
}
