package config

import "log/slog"

// BusConfig defines configuration for a Bus instance.
type BusConfig struct {
	// Bus identity, used in log attributes
	Name string

	// Observability
	Logger *slog.Logger
}

// DefaultBusConfig returns a BusConfig with sensible defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Name:   "default",
		Logger: slog.Default(),
	}
}

func (c *BusConfig) Merge(source *BusConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
