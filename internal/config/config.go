// Package config loads the daemon's YAML settings and object definitions.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals either a Go duration string ("90s", "5m") or a bare
// number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration.
type Config struct {
	NodeName      string `yaml:"node_name"`
	CommandPipe   string `yaml:"command_pipe"`
	MetricsListen string `yaml:"metrics_listen"`

	Log      LogConfig      `yaml:"log"`
	Checks   ChecksConfig   `yaml:"checks"`
	Flapping FlappingConfig `yaml:"flapping"`
	Toggles  TogglesConfig  `yaml:"toggles"`

	Hosts              []HostConfig              `yaml:"hosts"`
	ScheduledDowntimes []ScheduledDowntimeConfig `yaml:"scheduled_downtimes"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ChecksConfig holds scheduler-wide check execution settings and the
// defaults applied to checkables that don't override them.
type ChecksConfig struct {
	MaxConcurrent        int      `yaml:"max_concurrent"`
	DefaultInterval      Duration `yaml:"default_interval"`
	DefaultRetryInterval Duration `yaml:"default_retry_interval"`
	DefaultMaxAttempts   int      `yaml:"default_max_attempts"`
}

// FlappingConfig holds the default hysteresis thresholds.
type FlappingConfig struct {
	ThresholdLow  float64 `yaml:"threshold_low"`
	ThresholdHigh float64 `yaml:"threshold_high"`
}

// TogglesConfig holds the process-wide feature switches.
type TogglesConfig struct {
	ActiveChecks  bool `yaml:"active_checks"`
	Notifications bool `yaml:"notifications"`
	FlapDetection bool `yaml:"flap_detection"`
	EventHandlers bool `yaml:"event_handlers"`
}

// Default returns the configuration used when the file omits a setting.
func Default() *Config {
	return &Config{
		NodeName:      defaultNodeName(),
		CommandPipe:   "/var/run/vigilo/vigilo.cmd",
		MetricsListen: ":9115",
		Log:           LogConfig{Level: "info"},
		Checks: ChecksConfig{
			MaxConcurrent:      128,
			DefaultInterval:    Duration(5 * time.Minute),
			DefaultMaxAttempts: 3,
		},
		Flapping: FlappingConfig{ThresholdLow: 25.0, ThresholdHigh: 30.0},
		Toggles: TogglesConfig{
			ActiveChecks:  true,
			Notifications: true,
			FlapDetection: true,
			EventHandlers: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot start with. Per-checkable
// attributes are validated again at registration.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("node_name must be set")
	}
	if c.Checks.MaxConcurrent < 0 {
		return fmt.Errorf("checks.max_concurrent must not be negative")
	}
	if c.Checks.DefaultInterval <= 0 {
		return fmt.Errorf("checks.default_interval must be positive")
	}
	if c.Checks.DefaultMaxAttempts <= 0 {
		return fmt.Errorf("checks.default_max_attempts must be positive")
	}
	if c.Flapping.ThresholdLow > c.Flapping.ThresholdHigh {
		return fmt.Errorf("flapping.threshold_low must not exceed flapping.threshold_high")
	}
	seen := make(map[string]bool)
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if h.Name == "" {
			return fmt.Errorf("hosts[%d]: name must be set", i)
		}
		if seen[h.Name] {
			return fmt.Errorf("hosts[%d]: duplicate host %q", i, h.Name)
		}
		seen[h.Name] = true
		svcSeen := make(map[string]bool)
		for j := range h.Services {
			s := &h.Services[j]
			if s.Name == "" {
				return fmt.Errorf("host %s: services[%d]: name must be set", h.Name, j)
			}
			if svcSeen[s.Name] {
				return fmt.Errorf("host %s: duplicate service %q", h.Name, s.Name)
			}
			svcSeen[s.Name] = true
		}
	}
	for i := range c.Hosts {
		for _, p := range c.Hosts[i].Parents {
			if !seen[p] {
				return fmt.Errorf("host %s: parent %q is not a configured host", c.Hosts[i].Name, p)
			}
		}
	}
	for i := range c.ScheduledDowntimes {
		if err := c.ScheduledDowntimes[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func defaultNodeName() string {
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		return "vigilo"
	}
	return hn
}
