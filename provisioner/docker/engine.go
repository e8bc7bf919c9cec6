package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/label"
	"github.com/gammadia/jeeves/provisioner/internal"
	"github.com/gammadia/jeeves/scheduler"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
)

const (
	LabelKey    = "jeeves.label"
	JobKey      = "jeeves.job"
	ProviderKey = "jeeves.provider"
)

// DockerClient is the subset of the Docker SDK used by the engine.
type DockerClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

type Engine struct {
	name      string
	image     string
	docker    DockerClient
	allocator *label.Allocator
	slots     *internal.Slots
	log       *slog.Logger

	mu         sync.Mutex
	containers map[string]string // worker name -> container ID
}

// Engine implements cloud.Engine
var _ cloud.Engine = (*Engine)(nil)

// CreateLabelAssignmentAction mints a label and takes a worker slot for it.
// The slot is held until the worker is terminated or fails to launch.
func (e *Engine) CreateLabelAssignmentAction(*scheduler.Item) (*scheduler.LabelAssignment, error) {
	label := e.allocator.Allocate()
	if err := e.slots.Acquire(label); err != nil {
		return nil, err
	}
	return scheduler.NewLabelAssignment(label), nil
}

// Launch starts the container backing worker.
func (e *Engine) Launch(ctx context.Context, worker *scheduler.Worker) (err error) {
	e.mu.Lock()
	_, launched := e.containers[worker.Name]
	e.mu.Unlock()
	if launched {
		return fmt.Errorf("worker '%s' is already launched", worker.Name)
	}

	defer func() {
		if err != nil {
			e.slots.Release(worker.Label)
		}
	}()

	log := e.log.With("node", worker.Name)
	containerConfig := &container.Config{
		Image:    e.image,
		Hostname: worker.Name,
		Env: []string{
			fmt.Sprintf("JEEVES_LABEL=%s", worker.Label),
			fmt.Sprintf("JEEVES_JOB=%s", worker.Job.FQN()),
		},
		Labels: map[string]string{
			LabelKey:    worker.Label,
			JobKey:      worker.Job.FQN(),
			ProviderKey: e.name,
		},
	}

	resp, err := internal.RetryResult(ctx, 3, func() (container.CreateResponse, error) {
		return e.docker.ContainerCreate(ctx, containerConfig, &container.HostConfig{}, nil, nil, worker.Name)
	})
	if err != nil {
		return fmt.Errorf("failed to create container for worker '%s': %w", worker.Name, err)
	}
	for _, warning := range resp.Warnings {
		log.Warn("Docker warning while creating container", "warning", warning)
	}

	if err := e.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rmErr := e.docker.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			log.Error("Failed to remove container", "container", resp.ID, "error", rmErr)
		}
		return fmt.Errorf("failed to start container for worker '%s': %w", worker.Name, err)
	}

	e.mu.Lock()
	e.containers[worker.Name] = resp.ID
	e.mu.Unlock()

	log.Info("Worker container started", "container", resp.ID)
	return nil
}

// Terminate removes the container backing worker and frees its slot. Workers
// that were never launched only give their slot back.
func (e *Engine) Terminate(ctx context.Context, worker *scheduler.Worker) error {
	e.mu.Lock()
	id, ok := e.containers[worker.Name]
	delete(e.containers, worker.Name)
	e.mu.Unlock()
	e.slots.Release(worker.Label)

	if !ok {
		return nil
	}

	err := internal.Retry(ctx, 3, func() error {
		return e.docker.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	})
	if err != nil {
		return fmt.Errorf("failed to remove container '%s' of worker '%s': %w", id, worker.Name, err)
	}

	e.log.Info("Worker container removed", "node", worker.Name, "container", id)
	return nil
}

// InUse counts the workers holding a slot, launched or not.
func (e *Engine) InUse() int {
	return e.slots.InUse()
}

func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.containers)
}

// Shutdown removes every container still running.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	names := lo.Keys(e.containers)
	e.mu.Unlock()

	for _, name := range names {
		if err := e.Terminate(ctx, &scheduler.Worker{Name: name, Label: name}); err != nil {
			e.log.Error("Failed to terminate worker on shutdown", "node", name, "error", err)
		}
	}
}
