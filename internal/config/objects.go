package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/oceanplexian/vigilo/internal/checker"
	"github.com/oceanplexian/vigilo/internal/dependency"
	"github.com/oceanplexian/vigilo/internal/downtimes"
	"github.com/oceanplexian/vigilo/internal/objects"
)

// CheckSettings are the per-checkable attributes shared by hosts and
// services. Zero values fall back to the daemon defaults.
type CheckSettings struct {
	CheckCommand     string   `yaml:"check_command"`
	CommandTimeout   Duration `yaml:"command_timeout"`
	CheckInterval    Duration `yaml:"check_interval"`
	RetryInterval    Duration `yaml:"retry_interval"`
	MaxCheckAttempts int      `yaml:"max_check_attempts"`
	CommandEndpoint  string   `yaml:"command_endpoint"`
	Volatile         bool     `yaml:"volatile"`

	FlappingThresholdLow  float64 `yaml:"flapping_threshold_low"`
	FlappingThresholdHigh float64 `yaml:"flapping_threshold_high"`
}

// HostConfig defines one host and its services.
type HostConfig struct {
	Name          string   `yaml:"name"`
	Parents       []string `yaml:"parents"`
	CheckSettings `yaml:",inline"`

	Services []ServiceConfig `yaml:"services"`
}

// ServiceConfig defines one service on its enclosing host.
type ServiceConfig struct {
	Name          string `yaml:"name"`
	CheckSettings `yaml:",inline"`
}

// ScheduledDowntimeConfig defines a recurring downtime over weekly ranges,
// e.g. ranges: {monday: "09:00-17:00"}.
type ScheduledDowntimeConfig struct {
	Name     string            `yaml:"name"`
	Host     string            `yaml:"host"`
	Service  string            `yaml:"service"`
	Author   string            `yaml:"author"`
	Comment  string            `yaml:"comment"`
	Fixed    bool              `yaml:"fixed"`
	Duration Duration          `yaml:"duration"`
	Ranges   map[string]string `yaml:"ranges"`
}

func (sc *ScheduledDowntimeConfig) validate(i int) error {
	if sc.Name == "" {
		return fmt.Errorf("scheduled_downtimes[%d]: name must be set", i)
	}
	if sc.Host == "" {
		return fmt.Errorf("scheduled downtime %s: host must be set", sc.Name)
	}
	if len(sc.Ranges) == 0 {
		return fmt.Errorf("scheduled downtime %s: ranges must be set", sc.Name)
	}
	if _, err := buildPeriod(sc.Name, sc.Ranges); err != nil {
		return err
	}
	return nil
}

// BuildObjects registers every configured host and service with the store
// and records parent edges in the graph. Hosts are registered before their
// services and before any parent links.
func (c *Config) BuildObjects(store *objects.Store, graph *dependency.Graph) error {
	for i := range c.Hosts {
		hc := &c.Hosts[i]
		h := objects.NewHost(hc.Name)
		c.applySettings(h, &hc.CheckSettings)
		if err := store.Register(h); err != nil {
			return err
		}

		for j := range hc.Services {
			sc := &hc.Services[j]
			s := objects.NewService(h, sc.Name)
			c.applySettings(s, &sc.CheckSettings)
			if err := store.Register(s); err != nil {
				return err
			}
			graph.AddMember(h, s)
		}
	}

	for i := range c.Hosts {
		hc := &c.Hosts[i]
		child := store.GetHost(hc.Name)
		for _, p := range hc.Parents {
			parent := store.GetHost(p)
			if parent == nil {
				return fmt.Errorf("host %s: parent %q is not registered", hc.Name, p)
			}
			graph.AddMember(parent, child)
		}
	}
	return nil
}

// BuildScheduledDowntimes converts the config entries into materializer
// definitions.
func (c *Config) BuildScheduledDowntimes() ([]*downtimes.ScheduledDowntime, error) {
	out := make([]*downtimes.ScheduledDowntime, 0, len(c.ScheduledDowntimes))
	for i := range c.ScheduledDowntimes {
		sc := &c.ScheduledDowntimes[i]
		period, err := buildPeriod(sc.Name, sc.Ranges)
		if err != nil {
			return nil, err
		}
		out = append(out, &downtimes.ScheduledDowntime{
			Name:        sc.Name,
			HostName:    sc.Host,
			ServiceName: sc.Service,
			Author:      sc.Author,
			Comment:     sc.Comment,
			Period:      period,
			Fixed:       sc.Fixed,
			Duration:    sc.Duration.Std(),
		})
	}
	return out, nil
}

func (c *Config) applySettings(ch *objects.Checkable, s *CheckSettings) {
	ch.CheckInterval = c.Checks.DefaultInterval.Std()
	if s.CheckInterval > 0 {
		ch.CheckInterval = s.CheckInterval.Std()
	}
	ch.RetryInterval = c.Checks.DefaultRetryInterval.Std()
	if s.RetryInterval > 0 {
		ch.RetryInterval = s.RetryInterval.Std()
	}
	ch.MaxCheckAttempts = c.Checks.DefaultMaxAttempts
	if s.MaxCheckAttempts > 0 {
		ch.MaxCheckAttempts = s.MaxCheckAttempts
	}

	ch.CommandEndpoint = s.CommandEndpoint
	ch.Volatile = s.Volatile

	ch.Flap.ThresholdLow = c.Flapping.ThresholdLow
	ch.Flap.ThresholdHigh = c.Flapping.ThresholdHigh
	if s.FlappingThresholdLow > 0 {
		ch.Flap.ThresholdLow = s.FlappingThresholdLow
	}
	if s.FlappingThresholdHigh > 0 {
		ch.Flap.ThresholdHigh = s.FlappingThresholdHigh
	}

	if s.CheckCommand != "" {
		ch.CheckCommand = &checker.PluginCommand{
			CommandName:    commandName(s.CheckCommand),
			CommandLine:    s.CheckCommand,
			CommandTimeout: s.CommandTimeout.Std(),
		}
	}
}

// commandName derives a short name from the command line's executable.
func commandName(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return line
	}
	name := fields[0]
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func buildPeriod(name string, ranges map[string]string) (*objects.TimePeriod, error) {
	tp := objects.NewTimePeriod(name)
	for day, spec := range ranges {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("scheduled downtime %s: unknown weekday %q", name, day)
		}
		if err := tp.SetDay(wd, spec); err != nil {
			return nil, err
		}
	}
	return tp, nil
}
