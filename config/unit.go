package config

import "time"

// UnitConfig controls the autonomous behavior of a unit.
//
// Configuration fields:
//   - RetryPeriod: Delay before an ENABLED unit that landed in FAILED retries START
//   - Observer: Name of the Observer implementation to use (resolved via registry)
//
// Example JSON:
//
//	{
//	  "retry_period": 5000000000,
//	  "observer": "slog"
//	}
type UnitConfig struct {
	// RetryPeriod is the single-shot delay between a failure and the next START
	RetryPeriod time.Duration `json:"retry_period"`

	// Observer specifies which observer implementation to use ("noop", "slog", etc.)
	Observer string `json:"observer"`
}

// DefaultUnitConfig returns sensible defaults for a unit.
//
// Default values:
//   - RetryPeriod: 5s
//   - Observer: "noop"
func DefaultUnitConfig() UnitConfig {
	return UnitConfig{
		RetryPeriod: 5 * time.Second,
		Observer:    "noop",
	}
}

func (c *UnitConfig) Merge(source *UnitConfig) {
	if source.RetryPeriod > 0 {
		c.RetryPeriod = source.RetryPeriod
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
