package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/melih/jmxbridge/internal/core/domain"
)

const (
	ModeSDK = "sdk"
	ModeCLI = "cli"
)

type Config struct {
	Listen  string   `yaml:"listen"`
	Runtime Runtime  `yaml:"runtime"`
	Fetch   Fetch    `yaml:"fetch"`
	Backoff Backoff  `yaml:"backoff"`
	Targets []Target `yaml:"targets"`
}

type Runtime struct {
	Mode       string `yaml:"mode"`        // sdk or cli
	DockerHost string `yaml:"docker_host"` // sdk mode; empty means DOCKER_HOST / default socket
	DockerBin  string `yaml:"docker_bin"`  // cli mode
	Serialize  bool   `yaml:"serialize"`
}

type Fetch struct {
	Tool        string        `yaml:"tool"`
	Timeout     time.Duration `yaml:"timeout"`
	HostTimeout time.Duration `yaml:"host_timeout"`
}

// Backoff is the retry policy applied to a target after a systemic failure.
type Backoff struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = retry forever
}

type Target struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Fallback bool          `yaml:"fallback"`
	Beans    []string      `yaml:"beans"`
}

func defaultConfig() *Config {
	return &Config{
		Listen: ":9871",
		Runtime: Runtime{
			Mode:      ModeSDK,
			DockerBin: "docker",
		},
		Fetch: Fetch{
			Tool:        "curl",
			Timeout:     10 * time.Second,
			HostTimeout: 2 * time.Second,
		},
		Backoff: Backoff{
			Initial:    5 * time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2,
		},
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return defaultConfig()
}

// Load reads path, filling unset fields with defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, cfg.fill()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.fill()
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fill applies defaults to zero values and validates the result.
func (c *Config) fill() error {
	def := defaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Runtime.Mode == "" {
		c.Runtime.Mode = def.Runtime.Mode
	}
	if c.Runtime.DockerBin == "" {
		c.Runtime.DockerBin = def.Runtime.DockerBin
	}
	if c.Fetch.Tool == "" {
		c.Fetch.Tool = def.Fetch.Tool
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = def.Fetch.Timeout
	}
	if c.Fetch.HostTimeout <= 0 {
		c.Fetch.HostTimeout = def.Fetch.HostTimeout
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = def.Backoff.Initial
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = def.Backoff.Max
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Interval <= 0 {
			t.Interval = 15 * time.Second
		}
		if t.Timeout <= 0 {
			t.Timeout = c.Fetch.Timeout
		}
	}
	return c.Validate()
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Runtime.Mode != ModeSDK && c.Runtime.Mode != ModeCLI {
		errs = append(errs, fmt.Errorf("runtime.mode %q: want %q or %q", c.Runtime.Mode, ModeSDK, ModeCLI))
	}
	if c.Fetch.Tool != "curl" && c.Fetch.Tool != "wget" {
		errs = append(errs, fmt.Errorf("fetch.tool %q: want curl or wget", c.Fetch.Tool))
	}
	if c.Backoff.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("backoff.max_attempts must not be negative"))
	}
	seen := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: name is required", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true
		if _, err := domain.ParseEndpoint(t.URL); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
