package config

import (
	"sort"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete ~/.config/rpod/config.yaml file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Default names the connection used when --connection isn't given.
	Default string `yaml:"default,omitempty" mapstructure:"default"`

	// Timeout bounds connecting and each daemon call. Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`

	Retry RetryConfig `yaml:"retry,omitempty" mapstructure:"retry"`

	Connections map[string]Connection `yaml:"connections,omitempty" mapstructure:"connections"`
}

// RetryConfig controls reconnect attempts for timeouts and unreachable daemons.
type RetryConfig struct {
	// Attempts is the total number of connection attempts. 0 and 1 both mean no retry.
	Attempts int `yaml:"attempts,omitempty" mapstructure:"attempts"`

	// Backoff is the wait before the second attempt. Later waits grow linearly.
	Backoff time.Duration `yaml:"backoff,omitempty" mapstructure:"backoff"`
}

// Connection is a named daemon destination.
type Connection struct {
	// URI is ssh://[user@]host[:port][/socket], unix:///path or tcp://host:port.
	URI string `yaml:"uri" mapstructure:"uri"`

	// Identity is the SSH private key. Supports ~ and ${HOME}.
	Identity string `yaml:"identity,omitempty" mapstructure:"identity"`

	// IgnoreHosts skips known_hosts verification.
	IgnoreHosts bool `yaml:"ignore_hosts,omitempty" mapstructure:"ignore_hosts"`

	// KnownHosts overrides ~/.ssh/known_hosts.
	KnownHosts string `yaml:"known_hosts,omitempty" mapstructure:"known_hosts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Retry: RetryConfig{
			Attempts: 1,
			Backoff:  500 * time.Millisecond,
		},
		Connections: make(map[string]Connection),
	}
}

// ConnectionNames returns the configured connection names, sorted.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
