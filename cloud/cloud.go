// Package cloud holds the resource providers able to produce workers and
// finds the one that can serve a queued item.
package cloud

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gammadia/jeeves/scheduler"
	"github.com/samber/lo"
)

// ErrNoCapacity is returned by engines asked for a label while all their
// worker slots are taken.
var ErrNoCapacity = errors.New("provider is at capacity")

// Engine mints label assignments for a provider and later launches the
// workers bound to them.
type Engine interface {
	scheduler.Launcher
	// CreateLabelAssignmentAction runs with the item locked; it must not
	// touch the item's actions.
	CreateLabelAssignmentAction(item *scheduler.Item) (*scheduler.LabelAssignment, error)
}

type Provider interface {
	Name() string
	// CanProvision may be slow; it is never called with a lock held.
	CanProvision(requirement scheduler.Requirement) bool
	Engine() Engine
}

// Registry is the set of active providers. Reads never lock: every change
// publishes a new slice.
type Registry struct {
	mu        sync.Mutex
	providers atomic.Pointer[[]Provider]
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{}
	snapshot := append([]Provider(nil), providers...)
	r.providers.Store(&snapshot)
	return r
}

func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(r.Snapshot(), provider)
	r.providers.Store(&next)
}

func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.Snapshot()
	next := lo.Reject(current, func(p Provider, _ int) bool {
		return p.Name() == name
	})
	r.providers.Store(&next)
	return len(next) != len(current)
}

// Snapshot returns the providers registered at the time of the call. Callers
// may keep it; later changes to the registry are not reflected.
func (r *Registry) Snapshot() []Provider {
	if p := r.providers.Load(); p != nil {
		return append([]Provider(nil), (*p)...)
	}
	return nil
}

func (r *Registry) FindCapable(requirement scheduler.Requirement) (Provider, bool) {
	return FindCapable(r.Snapshot(), requirement)
}

// FindCapable returns the first provider accepting requirement.
func FindCapable(providers []Provider, requirement scheduler.Requirement) (Provider, bool) {
	return lo.Find(providers, func(p Provider) bool {
		return p.CanProvision(requirement)
	})
}
