package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
)

const (
	defaultName        = "unitd"
	defaultRetryPeriod = 5 * time.Second
	defaultObserver    = "slog"
)

// Duration is a time.Duration written as a Go duration string ("5s",
// "250ms") in config files. JSON also accepts a number of nanoseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var nanos int64
	if err := json.Unmarshal(data, &nanos); err == nil {
		*d = Duration(nanos)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	return d.UnmarshalText([]byte(text))
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// UnitSpec declares one supervised unit.
//
// Start and Stop are argument vectors run to completion; an empty vector
// succeeds immediately. Env entries have the form KEY=VALUE and extend the
// supervisor's own environment.
type UnitSpec struct {
	ID        string   `json:"id" yaml:"id"`
	Desired   string   `json:"desired,omitempty" yaml:"desired,omitempty"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Start     []string `json:"start,omitempty" yaml:"start,omitempty"`
	Stop      []string `json:"stop,omitempty" yaml:"stop,omitempty"`
	Dir       string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Env       []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// DesiredState parses Desired. Invalid values are reported by Validate and
// read as DesiredUnset here.
func (s UnitSpec) DesiredState() messaging.DesiredState {
	d, err := messaging.ParseDesiredState(strings.ToUpper(s.Desired))
	if err != nil {
		return messaging.DesiredUnset
	}
	return d
}

// Config is the declarative description of a supervised system.
//
// Example YAML:
//
//	name: demo
//	retry_period: 5s
//	observer: slog
//	metrics_addr: ":9090"
//	units:
//	  - id: db
//	    desired: ENABLED
//	    start: ["db-up"]
//	    stop: ["db-down"]
//	  - id: web
//	    desired: ENABLED
//	    depends_on: [db]
type Config struct {
	Name        string     `json:"name" yaml:"name"`
	RetryPeriod Duration   `json:"retry_period,omitempty" yaml:"retry_period,omitempty"`
	Observer    string     `json:"observer,omitempty" yaml:"observer,omitempty"`
	MetricsAddr string     `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	Units       []UnitSpec `json:"units" yaml:"units"`
}

// DefaultConfig returns a Config with sensible defaults and no units.
//
// Default values:
//   - Name: "unitd"
//   - RetryPeriod: 5s
//   - Observer: "slog"
func DefaultConfig() Config {
	return Config{
		Name:        defaultName,
		RetryPeriod: Duration(defaultRetryPeriod),
		Observer:    defaultObserver,
	}
}

// Merge applies non-zero values from source into c. A non-empty unit list
// replaces the current one.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.RetryPeriod > 0 {
		c.RetryPeriod = source.RetryPeriod
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.MetricsAddr != "" {
		c.MetricsAddr = source.MetricsAddr
	}
	if len(source.Units) > 0 {
		c.Units = source.Units
	}
}

// UnitConfig returns the settings shared by every unit.
func (c *Config) UnitConfig() config.UnitConfig {
	return config.UnitConfig{
		RetryPeriod: time.Duration(c.RetryPeriod),
		Observer:    c.Observer,
	}
}

// Unit returns the spec for id.
func (c *Config) Unit(id string) (UnitSpec, bool) {
	for _, spec := range c.Units {
		if spec.ID == id {
			return spec, true
		}
	}
	return UnitSpec{}, false
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON (.json) config file and
// merges it with defaults. The result is not validated.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data, filepath.Ext(filename))
}

// ParseConfig decodes data in the format named by ext and merges it with
// defaults.
func ParseConfig(data []byte, ext string) (*Config, error) {
	var loaded Config

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	cfg := DefaultConfig()
	cfg.Merge(&loaded)
	return &cfg, nil
}
