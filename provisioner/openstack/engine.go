package openstack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/label"
	"github.com/gammadia/jeeves/namegen"
	"github.com/gammadia/jeeves/provisioner/internal"
	"github.com/gammadia/jeeves/scheduler"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
	"golang.org/x/crypto/ssh"
)

type Engine struct {
	instance  namegen.ID
	config    Config
	client    *gophercloud.ServiceClient
	allocator *label.Allocator
	slots     *internal.Slots
	log       *slog.Logger

	keyName    string
	privateKey ssh.Signer

	mu      sync.Mutex
	servers map[string]string // worker name -> server ID
}

// Engine implements cloud.Engine
var _ cloud.Engine = (*Engine)(nil)

// CreateLabelAssignmentAction mints a label and takes a worker slot for it.
func (e *Engine) CreateLabelAssignmentAction(*scheduler.Item) (*scheduler.LabelAssignment, error) {
	label := e.allocator.Allocate()
	if err := e.slots.Acquire(label); err != nil {
		return nil, err
	}
	return scheduler.NewLabelAssignment(label), nil
}

func serverOpts(config Config, instance namegen.ID, keyName string, worker *scheduler.Worker) servers.CreateOptsBuilder {
	return keypairs.CreateOptsExt{
		CreateOptsBuilder: servers.CreateOpts{
			Name:           worker.Name,
			ImageRef:       config.Image,
			FlavorRef:      config.Flavor,
			Networks:       config.Networks,
			SecurityGroups: config.SecurityGroups,
			Metadata: map[string]string{
				"jeeves-provider":       instance.String(),
				"jeeves-label":          worker.Label,
				"jeeves-job":            worker.Job.FQN(),
				"jeeves-provisioned-at": time.Now().Format(time.RFC3339),
			},
		},
		KeyName: keyName,
	}
}

// Launch creates the server backing worker and waits until its Docker daemon
// answers over SSH.
func (e *Engine) Launch(ctx context.Context, worker *scheduler.Worker) (err error) {
	log := e.log.With("node", worker.Name)

	server, err := servers.Create(e.client, serverOpts(e.config, e.instance, e.keyName, worker)).Extract()
	if err != nil {
		e.slots.Release(worker.Label)
		return fmt.Errorf("failed to create server '%s': %w", worker.Name, err)
	}

	e.mu.Lock()
	e.servers[worker.Name] = server.ID
	e.mu.Unlock()

	defer func() {
		if err != nil {
			_ = e.Terminate(context.Background(), worker)
		}
	}()

	log.Debug("Wait for server to become ready", "wait", 2*time.Minute)
	if err = servers.WaitForStatus(e.client, server.ID, "ACTIVE", 120); err != nil {
		return fmt.Errorf("failed while waiting for server '%s' to become ready: %w", worker.Name, err)
	}

	address, err := e.ipv4(server.ID)
	if err != nil {
		return err
	}

	client, err := internal.RetryResult(ctx, 6, func() (*ssh.Client, error) {
		return ssh.Dial("tcp", fmt.Sprintf("%s:22", address), &ssh.ClientConfig{
			User:            e.config.SshUsername,
			Timeout:         5 * time.Second,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(e.privateKey)},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to connect to server '%s': %w", worker.Name, err)
	}
	defer client.Close()

	err = internal.Retry(ctx, 6, func() error {
		session, err := client.NewSession()
		if err != nil {
			return err
		}
		defer session.Close()
		return session.Run("docker info")
	})
	if err != nil {
		return fmt.Errorf("docker daemon on server '%s' is not ready: %w", worker.Name, err)
	}

	log.Info("Worker server is ready", "server", server.ID, "address", address)
	return nil
}

func (e *Engine) ipv4(serverID string) (string, error) {
	pages, err := servers.ListAddresses(e.client, serverID).AllPages()
	if err != nil {
		return "", fmt.Errorf("failed to get server addresses for '%s': %w", serverID, err)
	}

	allAddresses, err := servers.ExtractAddresses(pages)
	if err != nil {
		return "", fmt.Errorf("failed to extract server addresses for '%s': %w", serverID, err)
	}

	for _, addresses := range allAddresses {
		for _, address := range addresses {
			if address.Version == 4 {
				return address.Address, nil
			}
		}
	}
	return "", fmt.Errorf("failed to find IPv4 address for server '%s'", serverID)
}

// Terminate deletes the server backing worker and frees its slot.
func (e *Engine) Terminate(_ context.Context, worker *scheduler.Worker) error {
	e.mu.Lock()
	id, ok := e.servers[worker.Name]
	delete(e.servers, worker.Name)
	e.mu.Unlock()
	e.slots.Release(worker.Label)

	if !ok {
		return nil
	}

	if err := servers.Delete(e.client, id).ExtractErr(); err != nil {
		return fmt.Errorf("failed to delete server '%s': %w", id, err)
	}
	return nil
}

func (e *Engine) InUse() int {
	return e.slots.InUse()
}

// Shutdown deletes the remaining servers and the keypair.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	names := lo.Keys(e.servers)
	e.mu.Unlock()

	for _, name := range names {
		if err := e.Terminate(ctx, &scheduler.Worker{Name: name, Label: name}); err != nil {
			e.log.Error("Failed to terminate worker on shutdown", "node", name, "error", err)
		}
	}

	if err := keypairs.Delete(e.client, e.keyName, nil).ExtractErr(); err != nil {
		e.log.Error("Failed to delete keypair", "keypair", e.keyName, "error", err)
	}
}
