package docker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/registrar"
	"github.com/gammadia/jeeves/scheduler"
	"github.com/gammadia/jeeves/trigger"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	name   string
	config *container.Config
}

type mockDocker struct {
	mu       sync.Mutex
	creates  []createCall
	started  []string
	removed  []string
	startErr error
	createFn func() (container.CreateResponse, error)
}

func (d *mockDocker) ContainerCreate(_ context.Context, config *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates = append(d.creates, createCall{name: name, config: config})
	if d.createFn != nil {
		return d.createFn()
	}
	return container.CreateResponse{ID: "id-" + name}, nil
}

func (d *mockDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = append(d.started, id)
	return d.startErr
}

func (d *mockDocker) ContainerRemove(_ context.Context, id string, options container.RemoveOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !options.Force {
		return errors.New("expected forced removal")
	}
	d.removed = append(d.removed, id)
	return nil
}

func newTestProvider(t *testing.T, config Config) (*Provider, *mockDocker) {
	t.Helper()
	docker := &mockDocker{}
	if config.Image == "" {
		config.Image = "jeeves/worker:latest"
	}
	p, err := NewWithClient(config, docker)
	require.NoError(t, err)
	return p, docker
}

func bindWorker(t *testing.T, p *Provider, job string) *scheduler.Worker {
	t.Helper()
	assignment, err := p.Engine().CreateLabelAssignmentAction(nil)
	require.NoError(t, err)
	worker, err := scheduler.NewWorker(&scheduler.Job{Name: job}, assignment.Label(), p.Engine())
	require.NoError(t, err)
	return worker
}

func TestNewWithClientValidation(t *testing.T) {
	_, err := NewWithClient(Config{}, &mockDocker{})
	assert.EqualError(t, err, "docker worker image is required")

	_, err = NewWithClient(Config{Image: "x", MaxWorkers: -1}, &mockDocker{})
	assert.EqualError(t, err, "max-workers must not be negative")

	_, err = NewWithClient(Config{Image: "x", LabelPrefix: "Docker"}, &mockDocker{})
	assert.EqualError(t, err, "invalid label prefix: label 'Docker' must be a valid identifier")
}

func TestCanProvision(t *testing.T) {
	p, _ := newTestProvider(t, Config{Labels: []string{"docker", "docker-label-X"}})

	assert.Equal(t, "docker", p.Name())
	assert.True(t, p.CanProvision(""))
	assert.True(t, p.CanProvision("docker-label-X"))
	assert.True(t, p.CanProvision("docker && docker-label-X"))
	assert.False(t, p.CanProvision("vm"))
}

func TestCanProvisionRespectsMaxWorkers(t *testing.T) {
	p, _ := newTestProvider(t, Config{Labels: []string{"docker"}, MaxWorkers: 1})

	require.NoError(t, p.Engine().Launch(context.Background(), bindWorker(t, p, "build")))

	assert.False(t, p.CanProvision("docker"))
}

func TestLabelsUseProviderPrefix(t *testing.T) {
	p, _ := newTestProvider(t, Config{})
	other, _ := newTestProvider(t, Config{LabelPrefix: "fast"})

	assert.Regexp(t, `^docker-1-[0-9a-f]{8}$`, bindWorker(t, p, "build").Label)
	assert.Regexp(t, `^fast-1-[0-9a-f]{8}$`, bindWorker(t, other, "build").Label)
}

func TestLaunchAndTerminate(t *testing.T) {
	p, docker := newTestProvider(t, Config{})
	worker := bindWorker(t, p, "build")

	require.NoError(t, p.Engine().Launch(context.Background(), worker))

	require.Len(t, docker.creates, 1)
	created := docker.creates[0]
	assert.Equal(t, worker.Name, created.name)
	assert.Equal(t, "jeeves/worker:latest", created.config.Image)
	assert.Equal(t, map[string]string{
		LabelKey:    worker.Label,
		JobKey:      "build",
		ProviderKey: "docker",
	}, created.config.Labels)
	assert.Contains(t, created.config.Env, "JEEVES_LABEL="+worker.Label)
	assert.Equal(t, []string{"id-" + worker.Name}, docker.started)
	assert.Equal(t, 1, p.DockerEngine().Running())

	assert.EqualError(t, p.Engine().Launch(context.Background(), worker), "worker '"+worker.Name+"' is already launched")

	require.NoError(t, p.Engine().Terminate(context.Background(), worker))
	assert.Equal(t, []string{"id-" + worker.Name}, docker.removed)
	assert.Zero(t, p.DockerEngine().Running())
	assert.Zero(t, p.DockerEngine().InUse())

	// Terminating twice is a no-op
	require.NoError(t, p.Engine().Terminate(context.Background(), worker))
	assert.Len(t, docker.removed, 1)
}

func TestLaunchStartFailureRemovesContainer(t *testing.T) {
	p, docker := newTestProvider(t, Config{})
	docker.startErr = errors.New("no space left")
	worker := bindWorker(t, p, "build")

	err := p.Engine().Launch(context.Background(), worker)

	assert.ErrorContains(t, err, "failed to start container")
	assert.Equal(t, []string{"id-" + worker.Name}, docker.removed)
	assert.Zero(t, p.DockerEngine().Running())
	assert.Zero(t, p.DockerEngine().InUse())
}

func TestLaunchCreateFailure(t *testing.T) {
	p, docker := newTestProvider(t, Config{})
	docker.createFn = func() (container.CreateResponse, error) {
		return container.CreateResponse{}, errors.New("daemon unavailable")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Engine().Launch(ctx, bindWorker(t, p, "build"))

	assert.ErrorContains(t, err, "failed to create container")
	assert.Empty(t, docker.started)
	assert.Zero(t, p.DockerEngine().InUse())
}

func TestShutdownRemovesEveryContainer(t *testing.T) {
	p, docker := newTestProvider(t, Config{})
	first, second := bindWorker(t, p, "a"), bindWorker(t, p, "b")
	require.NoError(t, p.Engine().Launch(context.Background(), first))
	require.NoError(t, p.Engine().Launch(context.Background(), second))

	p.DockerEngine().Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"id-" + first.Name, "id-" + second.Name}, docker.removed)
	assert.Zero(t, p.DockerEngine().Running())
}

func TestMaxWorkersCountsPendingWorkers(t *testing.T) {
	p, _ := newTestProvider(t, Config{Labels: []string{"docker"}, MaxWorkers: 2})

	first, second := bindWorker(t, p, "a"), bindWorker(t, p, "b")
	assert.Equal(t, 2, p.DockerEngine().InUse())
	assert.Zero(t, p.DockerEngine().Running())
	assert.False(t, p.CanProvision("docker"))

	_, err := p.Engine().CreateLabelAssignmentAction(nil)
	assert.ErrorIs(t, err, cloud.ErrNoCapacity)

	// A worker that never launched gives its slot back on termination
	require.NoError(t, p.Engine().Terminate(context.Background(), first))
	assert.True(t, p.CanProvision("docker"))

	require.NoError(t, p.Engine().Launch(context.Background(), second))
	assert.Equal(t, 1, p.DockerEngine().InUse())
}

func TestMaxWorkersCapsBurstOfQueuedJobs(t *testing.T) {
	p, _ := newTestProvider(t, Config{Labels: []string{"docker"}, MaxWorkers: 2})

	config := scheduler.DefaultConfig()
	nodes := scheduler.NewNodes(config)
	trig := trigger.New(trigger.Config{
		Logger:    config.Logger,
		Providers: cloud.NewRegistry(p),
		Registrar: registrar.New(registrar.Config{
			Logger:   config.Logger,
			Executor: registrar.Inline{},
			Nodes:    nodes,
		}),
	})
	queue := scheduler.NewQueue(config)
	queue.AddListener(trig)

	for range 5 {
		queue.Schedule(scheduler.NewJob("build"), "docker")
	}

	assert.Len(t, nodes.List(), 2)
	assert.Equal(t, trigger.Stats{Provisioned: 2, Skipped: 3}, trig.Stats())
	assert.Equal(t, 2, p.DockerEngine().InUse())

	// Freeing a slot lets the next job through
	worker := nodes.List()[0]
	require.NoError(t, p.Engine().Terminate(context.Background(), worker))
	nodes.Remove(worker.Name)

	queue.Schedule(scheduler.NewJob("build"), "docker")
	assert.Len(t, nodes.List(), 2)
	assert.Equal(t, uint64(3), trig.Stats().Provisioned)
}
