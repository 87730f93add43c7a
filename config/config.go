// Package config loads tila configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version      string           `yaml:"version"`
	Provider     string           `yaml:"provider"`
	Region       string           `yaml:"region"`
	StateFile    string           `yaml:"state_file,omitempty"`
	JournalFile  string           `yaml:"journal_file,omitempty"`
	PollInterval time.Duration    `yaml:"poll_interval,omitempty"`
	WaitTimeout  time.Duration    `yaml:"wait_timeout,omitempty"`
	Defaults     InstanceDefaults `yaml:"defaults,omitempty"`
}

// InstanceDefaults fill in create parameters omitted on the command line
type InstanceDefaults struct {
	InstanceType     string   `yaml:"instance_type,omitempty"`
	AMI              string   `yaml:"ami,omitempty"`
	KeyName          string   `yaml:"key_name,omitempty"`
	SubnetID         string   `yaml:"subnet_id,omitempty"`
	SecurityGroupIDs []string `yaml:"security_group_ids,omitempty"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Version:      "1",
		Provider:     "aws",
		Region:       "us-east-1",
		StateFile:    "tila.state.json",
		JournalFile:  "tila.journal.db",
		PollInterval: 5 * time.Second,
	}
}

// Load reads and validates the configuration file at path. Omitted
// fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures the config has required fields
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait_timeout must not be negative")
	}
	return nil
}
