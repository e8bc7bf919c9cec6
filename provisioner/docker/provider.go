// Package docker provides workers as containers on a Docker daemon.
package docker

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/client"
	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/label"
	"github.com/gammadia/jeeves/provisioner/internal"
	"github.com/gammadia/jeeves/scheduler"
)

const Name = "docker"

type Provider struct {
	config Config
	engine *Engine
}

// Provider implements cloud.Provider
var _ cloud.Provider = (*Provider)(nil)

// New connects to the Docker daemon configured in the environment.
func New(config Config) (*Provider, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to init docker client: %w", err)
	}
	return NewWithClient(config, docker)
}

func NewWithClient(config Config, docker DockerClient) (*Provider, error) {
	if config.Image == "" {
		return nil, fmt.Errorf("docker worker image is required")
	}
	if config.MaxWorkers < 0 {
		return nil, fmt.Errorf("max-workers must not be negative")
	}
	if config.LabelPrefix == "" {
		config.LabelPrefix = Name
	}
	if err := scheduler.ValidateLabel(config.LabelPrefix); err != nil {
		return nil, fmt.Errorf("invalid label prefix: %w", err)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Provider{
		config: config,
		engine: &Engine{
			name:       Name,
			image:      config.Image,
			docker:     docker,
			allocator:  label.NewAllocator(config.LabelPrefix),
			slots:      internal.NewSlots(config.MaxWorkers),
			log:        config.Logger,
			containers: make(map[string]string),
		},
	}, nil
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) CanProvision(requirement scheduler.Requirement) bool {
	if p.engine.slots.Full() {
		return false
	}
	return requirement.SatisfiedBy(p.config.Labels)
}

func (p *Provider) Engine() cloud.Engine {
	return p.engine
}

func (p *Provider) DockerEngine() *Engine {
	return p.engine
}
