package docker

import (
	"log/slog"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger `json:"-"`
	// Labels offered by the workers of this provider
	Labels []string `json:"labels"`
	// Image of the worker containers
	Image string `json:"image"`
	// Maximum number of worker containers running at once, 0 for no limit
	MaxWorkers int `json:"max-workers"`
	// Prefix of the exclusivity labels minted by this provider
	LabelPrefix string `json:"label-prefix"`
}
