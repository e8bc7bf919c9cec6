package flags

import (
	"strings"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EventBuffer = "event-buffer"
	Jobs        = "jobs"
	LabelPrefix = "label-prefix"
	Listen      = "listen"
	LogFormat   = "log-format"
	LogLevel    = "log-level"
	LogSource   = "log-source"
	Providers   = "providers"
	Trace       = "trace"

	DockerImage       = "docker-image"
	DockerLabelPrefix = "docker-label-prefix"
	DockerLabels      = "docker-labels"
	DockerMaxWorkers  = "docker-max-workers"

	OpenstackFlavor         = "openstack-flavor"
	OpenstackImage          = "openstack-image"
	OpenstackLabelPrefix    = "openstack-label-prefix"
	OpenstackLabels         = "openstack-labels"
	OpenstackMaxWorkers     = "openstack-max-workers"
	OpenstackNetworks       = "openstack-networks"
	OpenstackSecurityGroups = "openstack-security-groups"
	OpenstackSshUsername    = "openstack-ssh-username"
)

func newFlagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)

	// Jeeves
	flags.Int(EventBuffer, 64, "capacity of each event subscriber")
	flags.String(Jobs, "", "YAML file of jobs to queue at startup")
	flags.String(LabelPrefix, "jeeves", "exclusivity labels are prefixed <label-prefix>-<provider> unless a provider sets its own")
	flags.String(Listen, ":25374", "listening address of the health service")
	flags.String(LogFormat, "json", "log format (json, text)")
	flags.String(LogLevel, "INFO", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.StringSlice(Providers, []string{"docker"}, "worker providers to enable, in lookup order (docker, openstack)")
	flags.Bool(Trace, false, "print trace spans to stderr")

	// Docker
	flags.String(DockerImage, "", "image of the worker containers")
	flags.String(DockerLabelPrefix, "", "prefix of labels minted by the docker provider")
	flags.StringSlice(DockerLabels, []string{"docker"}, "labels offered by docker workers")
	flags.Int(DockerMaxWorkers, 0, "maximum number of docker workers, 0 for no limit")

	// Openstack
	flags.String(OpenstackFlavor, "", "flavor to use for provisioning")
	flags.String(OpenstackImage, "", "image to use for provisioning")
	flags.String(OpenstackLabelPrefix, "", "prefix of labels minted by the openstack provider")
	flags.StringSlice(OpenstackLabels, []string{"openstack"}, "labels offered by openstack workers")
	flags.Int(OpenstackMaxWorkers, 0, "maximum number of openstack workers, 0 for no limit")
	flags.StringSlice(OpenstackNetworks, nil, "networks attached to the nodes")
	flags.StringSlice(OpenstackSecurityGroups, nil, "security groups defined for the nodes")
	flags.String(OpenstackSshUsername, "", "ssh username used to connect to the nodes")

	return flags
}

// Parse reads args into viper. Every flag can also be set through a
// JEEVES_-prefixed environment variable, e.g. JEEVES_DOCKER_IMAGE.
func Parse(name string, args []string) error {
	flags := newFlagSet(name)
	if err := flags.Parse(args); err != nil {
		return err
	}

	viper.SetEnvPrefix("jeeves")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
	return nil
}
