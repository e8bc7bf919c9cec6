// Package trigger provisions a dedicated worker the moment a job enters the
// queue, instead of waiting for the next capacity evaluation.
//
// When a buildable job matches a provider, the provider's engine allocates a
// unique label, the label is attached to the queued item, and a worker bound
// to that label is handed to the registrar in the background. Any failure
// leaves the item queued for regular provisioning.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/scheduler"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/gammadia/jeeves/trigger")

var (
	// ErrAllocation wraps engine failures while minting a label assignment.
	ErrAllocation = errors.New("label allocation failed")
	// ErrConstruction wraps failures to describe the worker for a freshly
	// minted label. The assignment is detached again.
	ErrConstruction = errors.New("worker construction failed")
)

// Providers finds the provider able to serve a requirement. Implemented by
// cloud.Registry.
type Providers interface {
	FindCapable(requirement scheduler.Requirement) (cloud.Provider, bool)
}

// Registrar takes over a bound worker without blocking the caller.
type Registrar interface {
	Submit(worker *scheduler.Worker)
}

// Config wires a Trigger to its collaborators.
type Config struct {
	// Logger defaults to a discarding logger
	Logger    *slog.Logger
	Providers Providers
	Registrar Registrar
}

// Stats counts how the items seen by a Trigger were handled.
type Stats struct {
	Provisioned uint64
	Skipped     uint64
	Failed      uint64
}

// Trigger is a scheduler.Listener eagerly provisioning a worker for every
// buildable job a provider can serve.
type Trigger struct {
	log       *slog.Logger
	providers Providers
	registrar Registrar

	provisioned atomic.Uint64
	skipped     atomic.Uint64
	failed      atomic.Uint64
}

// Trigger implements scheduler.Listener
var _ scheduler.Listener = (*Trigger)(nil)

// New returns a Trigger; register it with scheduler.Queue.AddListener.
func New(config Config) *Trigger {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Trigger{
		log:       logger,
		providers: config.Providers,
		registrar: config.Registrar,
	}
}

// Stats returns the counters accumulated since New.
func (t *Trigger) Stats() Stats {
	return Stats{
		Provisioned: t.provisioned.Load(),
		Skipped:     t.skipped.Load(),
		Failed:      t.failed.Load(),
	}
}

// OnEnterBuildable runs on the queue's dispatch goroutine. It never blocks on
// worker creation and never panics.
func (t *Trigger) OnEnterBuildable(item *scheduler.Item) {
	ctx, span := tracer.Start(context.Background(), "trigger.OnEnterBuildable")
	defer span.End()

	log := t.log
	var provisioned bool
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		span.SetAttributes(
			attribute.Int64("jeeves.item", int64(item.ID())),
			attribute.String("jeeves.requirement", item.Requirement().String()),
		)
		log = log.With("item", item.ID(), "task", item.Task().FQN())
		provisioned, err = t.provision(ctx, log, item)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}

	switch {
	case err != nil:
		t.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "eager provisioning failed")
		log.Error("Eager provisioning failed, leaving item to regular provisioning", "error", err)
	case provisioned:
		t.provisioned.Add(1)
	default:
		t.skipped.Add(1)
	}
}

func (t *Trigger) provision(ctx context.Context, log *slog.Logger, item *scheduler.Item) (bool, error) {
	job, ok := item.Task().(*scheduler.Job)
	if !ok {
		return false, nil
	}

	provider, ok := t.providers.FindCapable(item.Requirement())
	if !ok {
		log.Debug("No provider can serve item", "requirement", item.Requirement())
		return false, nil
	}

	if len(scheduler.ActionsOf[*scheduler.LabelAssignment](item)) > 0 {
		log.Debug("Item is already bound to a worker")
		return false, nil
	}

	engine := provider.Engine()
	assignment, created, err := scheduler.AttachOnce(item, func() (*scheduler.LabelAssignment, error) {
		assignment, err := engine.CreateLabelAssignmentAction(item)
		if err == nil && assignment == nil {
			err = fmt.Errorf("provider '%s' returned no label assignment", provider.Name())
		}
		return assignment, err
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	if !created {
		log.Debug("Item was bound concurrently")
		return false, nil
	}

	worker, err := scheduler.NewWorker(job, assignment.Label(), engine)
	if err != nil {
		item.RemoveAction(assignment)
		// Give the label's worker slot back to the engine
		unbound := &scheduler.Worker{Name: assignment.Label(), Label: assignment.Label()}
		if releaseErr := engine.Terminate(ctx, unbound); releaseErr != nil {
			log.Warn("Failed to release label", "label", assignment.Label(), "error", releaseErr)
		}
		return false, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	log.Info("Eagerly provisioning worker", "provider", provider.Name(), "label", assignment.Label())
	t.registrar.Submit(worker)
	return true, nil
}
