package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/util"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory for the config file, relative to home.
	GlobalConfigDir = ".config/rpod"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment variable rpod reads.
	EnvPrefix = "RPOD"
)

// Path resolves the config file location:
// 1. Explicit path (from --config)
// 2. $RPOD_CONFIG
// 3. $XDG_CONFIG_HOME/rpod/config.yaml
// 4. ~/.config/rpod/config.yaml
//
// The file doesn't have to exist.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return ExpandTilde(explicit), nil
	}
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return ExpandTilde(env), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rpod", GlobalConfigFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't figure out your home directory",
			"Pass the config file explicitly with --config")
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// Load reads config from path. A missing file yields the defaults, unless
// the path was given explicitly with --config.
//
// RPOD_CONNECTION, RPOD_TIMEOUT, RPOD_RETRIES and RPOD_RETRY_BACKOFF
// override the file.
func Load(path string, explicit bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		switch {
		case os.IsNotExist(err) && !explicit:
			// no file yet: defaults plus environment
		case os.IsNotExist(err):
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Check the path, or drop --config to use "+filepath.Join("~", GlobalConfigDir, GlobalConfigFile))
		default:
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file is valid YAML: "+path)
		}
	}

	return parseConfig(v, path)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("default", EnvPrefix+"_CONNECTION")
	_ = v.BindEnv("timeout", EnvPrefix+"_TIMEOUT")
	_ = v.BindEnv("retry.attempts", EnvPrefix+"_RETRIES")
	_ = v.BindEnv("retry.backoff", EnvPrefix+"_RETRY_BACKOFF")
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	if cfg.Connections == nil {
		cfg.Connections = make(map[string]Connection)
	}

	for name, conn := range cfg.Connections {
		conn.Identity = ExpandPath(conn.Identity)
		conn.KnownHosts = ExpandPath(conn.KnownHosts)
		cfg.Connections[name] = conn
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("version", cfg.Version)
	v.SetDefault("retry.attempts", cfg.Retry.Attempts)
	v.SetDefault("retry.backoff", cfg.Retry.Backoff.String())
}

// Lookup returns the named connection. An unknown name gets a "did you mean" suggestion.
func (c *Config) Lookup(name string) (Connection, error) {
	// viper lowercases map keys
	if conn, ok := c.Connections[strings.ToLower(name)]; ok {
		return conn, nil
	}

	names := c.ConnectionNames()
	suggestion := "Add it with: rpod connection add " + name + " ssh://user@host"
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		suggestion = fmt.Sprintf("Did you mean %s?", util.JoinOrNone(similar))
	} else if len(names) > 0 {
		suggestion = "Configured connections: " + util.JoinOrNone(names)
	}
	return Connection{}, errors.New(errors.ErrConfig,
		fmt.Sprintf("No connection named '%s'", name), suggestion)
}
