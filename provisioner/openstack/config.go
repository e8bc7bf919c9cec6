package openstack

import (
	"log/slog"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
)

type Config struct {
	Logger *slog.Logger `json:"-"`

	// Labels offered by the workers of this provider
	Labels      []string `json:"labels"`
	LabelPrefix string   `json:"label-prefix"`
	MaxWorkers  int      `json:"max-workers"`

	Image          string            `json:"image"`
	Flavor         string            `json:"flavor"`
	Networks       []servers.Network `json:"networks"`
	SecurityGroups []string          `json:"security-groups"`
	SshUsername    string            `json:"ssh-username"`
}
