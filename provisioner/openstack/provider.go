// Package openstack provides workers as OpenStack compute servers running a
// Docker daemon.
package openstack

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/label"
	"github.com/gammadia/jeeves/namegen"
	"github.com/gammadia/jeeves/provisioner/internal"
	"github.com/gammadia/jeeves/scheduler"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"golang.org/x/crypto/ssh"
)

const Name = "openstack"

type Provider struct {
	config Config
	engine *Engine
}

// Provider implements cloud.Provider
var _ cloud.Provider = (*Provider)(nil)

// New authenticates against OpenStack using the OS_* environment variables and
// creates the keypair used to reach the workers.
func New(config Config) (*Provider, error) {
	if config.Image == "" || config.Flavor == "" {
		return nil, fmt.Errorf("openstack image and flavor are required")
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

	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}

	provider, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	client, err := openstack.NewComputeV2(provider, gophercloud.EndpointOpts{
		Region: os.Getenv("OS_REGION_NAME"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	instance := namegen.Get()
	keyName := instance.Prefixed("jeeves")
	keypair, err := keypairs.Create(client, keypairs.CreateOpts{Name: keyName}).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to create keypair: %w", err)
	}
	privateKey, err := ssh.ParsePrivateKey([]byte(keypair.PrivateKey))
	if err != nil {
		_ = keypairs.Delete(client, keyName, nil).ExtractErr()
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Provider{
		config: config,
		engine: &Engine{
			instance:   instance,
			config:     config,
			client:     client,
			allocator:  label.NewAllocator(config.LabelPrefix),
			slots:      internal.NewSlots(config.MaxWorkers),
			log:        config.Logger,
			keyName:    keyName,
			privateKey: privateKey,
			servers:    make(map[string]string),
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

func (p *Provider) OpenstackEngine() *Engine {
	return p.engine
}
