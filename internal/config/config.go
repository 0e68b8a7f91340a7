// Package config loads the YAML runtime configuration: database location,
// descriptor directory, remote endpoint, and the directory of systems to
// reconcile.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/remora-io/remora/internal/remote"
)

// Config is the full runtime configuration.
type Config struct {
	// Database is the path to the SQLite mirror database.
	Database string `yaml:"database"`

	// Datasets is the directory holding CUE dataset descriptors.
	Datasets string `yaml:"datasets"`

	// Remote configures the vendor API endpoint.
	Remote Remote `yaml:"remote"`

	// Pause is the courtesy delay between systems in a batch.
	// Defaults to 2s when omitted.
	Pause Duration `yaml:"pause,omitempty"`

	// Systems lists the target systems and their access tokens.
	Systems []System `yaml:"systems"`
}

// Remote configures the vendor API endpoint.
type Remote struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// System is one target system entry.
type System struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Token string `yaml:"token"`
}

// Duration wraps time.Duration with YAML support for "2s"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Datasets == "" {
		return fmt.Errorf("datasets directory is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if len(c.Systems) == 0 {
		return fmt.Errorf("at least one system is required")
	}
	seen := make(map[string]bool, len(c.Systems))
	for i, s := range c.Systems {
		if s.ID == "" {
			return fmt.Errorf("systems[%d]: id is required", i)
		}
		if s.Token == "" {
			return fmt.Errorf("system %s: token is required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("system %s declared twice", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Directory returns the configured systems as a remote.Directory.
func (c *Config) Directory() remote.StaticDirectory {
	dir := make(remote.StaticDirectory, len(c.Systems))
	for i, s := range c.Systems {
		label := s.Label
		if label == "" {
			label = s.ID
		}
		dir[i] = remote.System{ID: s.ID, Label: label}
	}
	return dir
}

// Tokens returns the configured per-system tokens as a remote.TokenProvider.
func (c *Config) Tokens() remote.StaticTokens {
	tokens := make(remote.StaticTokens, len(c.Systems))
	for _, s := range c.Systems {
		tokens[s.ID] = s.Token
	}
	return tokens
}
