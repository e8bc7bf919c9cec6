package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

var (
	ErrInvalidWorker = errors.New("invalid worker")
	ErrNodeExists    = errors.New("node already exists")
	ErrLabelInUse    = errors.New("label is bound to another node")
)

var labelRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// ValidateLabel reports whether label can identify a worker. A valid prefix
// keeps every label minted from it valid.
func ValidateLabel(label string) error {
	if !labelRegex.MatchString(label) {
		return fmt.Errorf("label '%s' must be a valid identifier", label)
	}
	return nil
}

// Launcher instantiates the process backing a worker. Implemented by provider
// engines.
type Launcher interface {
	Launch(ctx context.Context, worker *Worker) error
	Terminate(ctx context.Context, worker *Worker) error
}

// Worker describes an execution node reserved for a single job. It is only a
// placeholder until its Launcher brings the real process up.
type Worker struct {
	Name      string
	Job       *Job
	Label     string
	Launcher  Launcher
	CreatedAt time.Time
}

func NewWorker(job *Job, label string, launcher Launcher) (*Worker, error) {
	worker := &Worker{
		Name:      label,
		Job:       job,
		Label:     label,
		Launcher:  launcher,
		CreatedAt: time.Now(),
	}
	if err := worker.Validate(); err != nil {
		return nil, err
	}
	return worker, nil
}

func (w *Worker) Validate() error {
	switch {
	case w.Job == nil:
		return fmt.Errorf("%w: job is required", ErrInvalidWorker)
	case w.Job.Name == "":
		return fmt.Errorf("%w: job name must not be empty", ErrInvalidWorker)
	case !labelRegex.MatchString(w.Label):
		return fmt.Errorf("%w: %w", ErrInvalidWorker, ValidateLabel(w.Label))
	case w.Name == "":
		return fmt.Errorf("%w: name must not be empty", ErrInvalidWorker)
	case w.Launcher == nil:
		return fmt.Errorf("%w: launcher is required", ErrInvalidWorker)
	}
	return nil
}

type RegistrationError struct {
	Node string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register node '%s': %s", e.Node, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Nodes is the registry of known workers.
type Nodes struct {
	log    *slog.Logger
	events *broadcaster

	mu      sync.RWMutex
	byName  map[string]*Worker
	byLabel map[string]string
}

func NewNodes(config Config) *Nodes {
	log := config.logger()
	return &Nodes{
		log:     log,
		events:  newBroadcaster(config.EventBuffer, log),
		byName:  make(map[string]*Worker),
		byLabel: make(map[string]string),
	}
}

func (n *Nodes) Subscribe() (<-chan Event, func()) {
	return n.events.Subscribe()
}

// Add registers worker. Nothing is registered when an error is returned.
func (n *Nodes) Add(worker *Worker) error {
	if worker == nil {
		return &RegistrationError{Err: fmt.Errorf("%w: worker is nil", ErrInvalidWorker)}
	}
	if err := worker.Validate(); err != nil {
		return &RegistrationError{Node: worker.Name, Err: err}
	}

	n.mu.Lock()
	if _, exists := n.byName[worker.Name]; exists {
		n.mu.Unlock()
		return &RegistrationError{Node: worker.Name, Err: ErrNodeExists}
	}
	if owner, bound := n.byLabel[worker.Label]; bound {
		n.mu.Unlock()
		return &RegistrationError{Node: worker.Name, Err: fmt.Errorf("%w '%s'", ErrLabelInUse, owner)}
	}
	n.byName[worker.Name] = worker
	n.byLabel[worker.Label] = worker.Name
	n.mu.Unlock()

	n.log.Info("Node registered", "node", worker.Name, "label", worker.Label, "job", worker.Job.FQN())
	n.events.broadcast(EventNodeRegistered{Node: worker.Name, Label: worker.Label, Job: worker.Job.FQN()})
	return nil
}

func (n *Nodes) Remove(name string) (*Worker, bool) {
	n.mu.Lock()
	worker, ok := n.byName[name]
	if ok {
		delete(n.byName, name)
		delete(n.byLabel, worker.Label)
	}
	n.mu.Unlock()

	if ok {
		n.log.Info("Node removed", "node", name)
		n.events.broadcast(EventNodeRemoved{Node: name})
	}
	return worker, ok
}

func (n *Nodes) Get(name string) (*Worker, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	worker, ok := n.byName[name]
	return worker, ok
}

// List returns the registered workers sorted by name.
func (n *Nodes) List() []*Worker {
	n.mu.RLock()
	workers := lo.Values(n.byName)
	n.mu.RUnlock()

	sort.Slice(workers, func(i, j int) bool {
		return workers[i].Name < workers[j].Name
	})
	return workers
}
