// Package registrar moves freshly bound workers into the node registry,
// away from the goroutine that created them.
package registrar

import (
	"context"
	"io"
	"log/slog"

	"github.com/gammadia/jeeves/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/gammadia/jeeves/registrar")

// NodeRegistry is where registered workers end up.
type NodeRegistry interface {
	Add(worker *scheduler.Worker) error
}

type Config struct {
	// Logger defaults to a discarding logger
	Logger   *slog.Logger
	Executor Executor
	Nodes    NodeRegistry
}

type Registrar struct {
	log      *slog.Logger
	executor Executor
	nodes    NodeRegistry
}

func New(config Config) *Registrar {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Registrar{
		log:      logger,
		executor: config.Executor,
		nodes:    config.Nodes,
	}
}

// Submit schedules the registration of worker and returns immediately.
func (r *Registrar) Submit(worker *scheduler.Worker) {
	r.executor.Submit(func() {
		_ = r.Register(context.Background(), worker)
	})
}

// Register makes a single attempt at adding worker to the node registry. A
// rejected worker is dropped and its launcher terminates it, which frees the
// provider slot; the job is left to regular provisioning.
func (r *Registrar) Register(ctx context.Context, worker *scheduler.Worker) error {
	ctx, span := tracer.Start(ctx, "registrar.Register")
	defer span.End()
	span.SetAttributes(
		attribute.String("jeeves.node", worker.Name),
		attribute.String("jeeves.label", worker.Label),
	)

	log := r.log.With("node", worker.Name, "label", worker.Label)
	if worker.Job != nil {
		log = log.With("job", worker.Job.FQN())
	}

	if err := r.nodes.Add(worker); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		log.Error("Failed to register worker, falling back to regular provisioning", "error", err)
		if worker.Launcher != nil {
			if termErr := worker.Launcher.Terminate(ctx, worker); termErr != nil {
				log.Warn("Failed to release rejected worker", "error", termErr)
			}
		}
		return err
	}

	log.Debug("Worker registered")
	return nil
}
