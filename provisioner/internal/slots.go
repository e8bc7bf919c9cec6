package internal

import (
	"fmt"
	"sync"

	"github.com/gammadia/jeeves/cloud"
)

// Slots caps how many workers a provider holds at once. A slot is taken when
// a label is minted, not when the worker starts, so a burst of queued jobs
// cannot overshoot the cap while launches are still in flight.
type Slots struct {
	max int

	mu   sync.Mutex
	held map[string]struct{}
}

// NewSlots returns a cap of max workers; 0 means no limit.
func NewSlots(max int) *Slots {
	return &Slots{
		max:  max,
		held: make(map[string]struct{}),
	}
}

func (s *Slots) Acquire(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[label]; ok {
		return fmt.Errorf("label '%s' already holds a slot", label)
	}
	if s.max > 0 && len(s.held) >= s.max {
		return fmt.Errorf("%w: %d of %d workers in use", cloud.ErrNoCapacity, len(s.held), s.max)
	}
	s.held[label] = struct{}{}
	return nil
}

// Release gives back the slot of label. Unknown labels are ignored.
func (s *Slots) Release(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, label)
}

func (s *Slots) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max > 0 && len(s.held) >= s.max
}

func (s *Slots) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}
