// Package config loads the agent's YAML configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes everything the agent needs to reach its control
// server and run its loops.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Server  ServerConfig  `yaml:"server"`
	Report  ReportConfig  `yaml:"report"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`

	// Digest is the xxhash of the raw file bytes, set by Load. It lets
	// the agent log which config revision it is running and detect
	// changes on re-read.
	Digest uint64 `yaml:"-"`
}

type AgentConfig struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type ServerConfig struct {
	URL          string        `yaml:"url"`
	WebsocketURL string        `yaml:"websocket_url"`
	Timeout      Duration `yaml:"timeout,omitempty"`
}

type ReportConfig struct {
	Interval  Duration `yaml:"interval,omitempty"`
	SpoolPath string        `yaml:"spool_path,omitempty"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Default returns the configuration the agent runs with when the file
// leaves a field unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Timeout: Duration(30 * time.Second),
		},
		Report: ReportConfig{
			Interval: Duration(30 * time.Second),
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agent.db"
	}
	return home + "/.serverpulse/agent.db"
}

// Load reads, decodes, and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read decodes a configuration document from r. Used where the config
// arrives over a stream rather than from a file.
func Read(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read config stream")
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Digest = xxhash.Sum64(raw)
	return &cfg, nil
}

// Validate checks the fields the agent cannot run without.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Server.WebsocketURL == "" {
		return fmt.Errorf("server.websocket_url is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Report.Interval <= 0 {
		return fmt.Errorf("report.interval must be positive")
	}
	return nil
}
