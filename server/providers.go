package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/provisioner/docker"
	"github.com/gammadia/jeeves/provisioner/openstack"
	"github.com/gammadia/jeeves/server/flags"
	"github.com/gammadia/jeeves/server/log"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type shutdowner interface {
	Shutdown(ctx context.Context)
}

// createProviders builds the providers named by the providers flag, in lookup
// order.
func createProviders() (*cloud.Registry, error) {
	registry := cloud.NewRegistry()

	for _, name := range lo.Uniq(viper.GetStringSlice(flags.Providers)) {
		provider, err := createProvider(name)
		if err != nil {
			return nil, fmt.Errorf("unable to create provider '%s': %w", name, err)
		}
		registry.Register(provider)
	}

	return registry, nil
}

func createProvider(name string) (cloud.Provider, error) {
	logger := log.Component("provider").With("provider", name)

	switch name {
	case docker.Name:
		config := docker.Config{
			Logger:      logger,
			Labels:      viper.GetStringSlice(flags.DockerLabels),
			Image:       viper.GetString(flags.DockerImage),
			MaxWorkers:  viper.GetInt(flags.DockerMaxWorkers),
			LabelPrefix: labelPrefix(flags.DockerLabelPrefix, name),
		}
		logger.Debug("Provider config", "config", string(lo.Must(json.Marshal(config))))
		return docker.New(config)

	case openstack.Name:
		config := openstack.Config{
			Logger:      logger,
			Labels:      viper.GetStringSlice(flags.OpenstackLabels),
			LabelPrefix: labelPrefix(flags.OpenstackLabelPrefix, name),
			MaxWorkers:  viper.GetInt(flags.OpenstackMaxWorkers),
			Image:       viper.GetString(flags.OpenstackImage),
			Flavor:      viper.GetString(flags.OpenstackFlavor),
			Networks: lo.Map(
				viper.GetStringSlice(flags.OpenstackNetworks),
				func(s string, _ int) servers.Network {
					return servers.Network{UUID: s}
				},
			),
			SecurityGroups: viper.GetStringSlice(flags.OpenstackSecurityGroups),
			SshUsername:    viper.GetString(flags.OpenstackSshUsername),
		}
		logger.Debug("Provider config", "config", string(lo.Must(json.Marshal(config))))
		return openstack.New(config)

	default:
		return nil, fmt.Errorf("unknown provider")
	}
}

// labelPrefix returns the prefix set by key, or the shared label prefix
// scoped by provider.
func labelPrefix(key, provider string) string {
	if prefix := viper.GetString(key); prefix != "" {
		return prefix
	}
	if base := viper.GetString(flags.LabelPrefix); base != "" {
		return base + "-" + provider
	}
	return ""
}

// shutdownProviders releases what the providers still hold: running workers,
// keypairs.
func shutdownProviders(ctx context.Context, registry *cloud.Registry) {
	for _, provider := range registry.Snapshot() {
		if s, ok := provider.Engine().(shutdowner); ok {
			log.Info("Shutting down provider", "provider", provider.Name())
			s.Shutdown(ctx)
		}
	}
}
