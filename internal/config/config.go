// Package config loads the ferry configuration file: named remotes and
// their backend options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ferry.
type Config struct {
	// Remotes maps a remote name to its backend configuration.
	Remotes map[string]RemoteConfig `yaml:"remotes" json:"remotes"`

	// Jobs is the global default transfer concurrency; zero lets each
	// backend pick its own default.
	Jobs int `yaml:"jobs" json:"jobs"`
}

// RemoteConfig defines one configured backend endpoint.
type RemoteConfig struct {
	// URL locates the remote, e.g. "s3://bucket/prefix" or
	// "sftp://user@host/data".
	URL string `yaml:"url" json:"url"`

	// Jobs caps concurrent transfers against this remote.
	Jobs int `yaml:"jobs" json:"jobs"`

	// ChecksumJobs caps concurrent checksum computations.
	ChecksumJobs int `yaml:"checksum_jobs" json:"checksum_jobs"`

	// Options holds backend-specific settings (region, endpoint,
	// credentials, bandwidth caps, ...).
	Options map[string]string `yaml:"options" json:"options"`
}

// DefaultConfig returns an empty configuration with no remotes.
func DefaultConfig() *Config {
	return &Config{
		Remotes: map[string]RemoteConfig{},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ferry.yaml"
	}
	return filepath.Join(home, ".config", "ferry", "config.yaml")
}

// Load reads configuration from a file. YAML and JSON are both accepted,
// chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to a file, creating parent directories.
func (c *Config) Save(path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	for name, remote := range c.Remotes {
		if remote.URL == "" {
			return fmt.Errorf("remote %q has no url", name)
		}
		if remote.Jobs < 0 {
			return fmt.Errorf("remote %q has negative jobs", name)
		}
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}
	return nil
}

// Remote resolves a remote by name.
func (c *Config) Remote(name string) (RemoteConfig, error) {
	remote, ok := c.Remotes[name]
	if !ok {
		return RemoteConfig{}, fmt.Errorf("unknown remote %q", name)
	}
	return remote, nil
}
