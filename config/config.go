// Package config holds the YAML configuration of the ds1624 tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/hwmon/ds1624"
)

const (
	AdapterSim     = "sim"
	AdapterPeriph  = "periph"
	AdapterGobot   = "gobot"
	AdapterMCP2221 = "mcp2221"
)

var ErrInvalid = errors.New("invalid configuration")

var adapters = []string{AdapterSim, AdapterPeriph, AdapterGobot, AdapterMCP2221}

type Config struct {
	Adapter      string        `yaml:"adapter"`
	Bus          string        `yaml:"bus"`
	Address      uint16        `yaml:"address"`
	SettlingTime time.Duration `yaml:"settling_time"`
	LogLevel     string        `yaml:"log_level"`
	Monitor      Monitor       `yaml:"monitor"`
	Outputs      Outputs       `yaml:"outputs"`
}

type Monitor struct {
	Name        string        `yaml:"name"`
	Interval    time.Duration `yaml:"interval"`
	MaxFailures int           `yaml:"max_failures"`
}

type Outputs struct {
	Console bool  `yaml:"console"`
	MQTT    *MQTT `yaml:"mqtt,omitempty"`
}

type MQTT struct {
	Server         string `yaml:"server"`
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	StateTopic     string `yaml:"state_topic"`
	DiscoveryTopic string `yaml:"discovery_topic"`
	DiscoveryName  string `yaml:"discovery_name"`
}

func Default() Config {
	return Config{
		Adapter:      AdapterPeriph,
		Address:      ds1624.DefaultAddress,
		SettlingTime: ds1624.DefaultSettlingTime,
		LogLevel:     "info",
		Monitor: Monitor{
			Name:        "ds1624",
			Interval:    10 * time.Second,
			MaxFailures: 5,
		},
		Outputs: Outputs{Console: true},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(adapters, c.Adapter) {
		errs = append(errs, fmt.Errorf("unknown adapter %q", c.Adapter))
	}
	if c.Address < 0x48 || c.Address > 0x4F {
		errs = append(errs, fmt.Errorf("address %#02x outside 0x48-0x4f", c.Address))
	}
	if c.SettlingTime < 0 {
		errs = append(errs, fmt.Errorf("negative settling time %s", c.SettlingTime))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor interval must be positive, got %s", c.Monitor.Interval))
	}
	if c.Monitor.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("negative max failures %d", c.Monitor.MaxFailures))
	}
	if c.Outputs.MQTT != nil && c.Outputs.MQTT.Server == "" {
		errs = append(errs, errors.New("mqtt output requires a server"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Marshal returns the YAML form of the configuration.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
