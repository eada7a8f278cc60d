package config

import "log/slog"

// TrackerConfig defines configuration for a Tracker instance.
type TrackerConfig struct {
	// Name identifies the tracker in log attributes
	Name string `json:"name"`

	// Observability
	Logger *slog.Logger `json:"-"`
}

// DefaultTrackerConfig returns a TrackerConfig with sensible defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Name:   "tracker",
		Logger: slog.Default(),
	}
}

func (c *TrackerConfig) Merge(source *TrackerConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
