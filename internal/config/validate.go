package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/util"
)

var connectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but rpod only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade rpod, or rewrite the file with: rpod connection add")
	}

	if cfg.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("timeout can't be negative (got %s)", cfg.Timeout),
			"Use 0 for no timeout, or a duration like 30s")
	}
	if cfg.Retry.Attempts < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("retry.attempts can't be negative (got %d)", cfg.Retry.Attempts),
			"Use 1 to connect once without retrying")
	}
	if cfg.Retry.Backoff < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("retry.backoff can't be negative (got %s)", cfg.Retry.Backoff), "")
	}

	for _, name := range cfg.ConnectionNames() {
		if err := ValidateConnectionName(name); err != nil {
			return err
		}
		if err := validateConnection(name, cfg.Connections[name]); err != nil {
			return err
		}
	}

	if cfg.Default != "" {
		if _, ok := cfg.Connections[strings.ToLower(cfg.Default)]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default connection '%s' isn't defined", cfg.Default),
				fmt.Sprintf("Configured connections: %s", util.JoinOrNone(cfg.ConnectionNames())))
		}
	}

	return nil
}

// ValidateConnectionName checks a name is usable as a connection key.
func ValidateConnectionName(name string) error {
	if !connectionNamePattern.MatchString(name) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' isn't a valid connection name", name),
			"Use lowercase letters, digits, '.', '_' and '-', starting with a letter or digit")
	}
	return nil
}

func validateConnection(name string, conn Connection) error {
	if conn.URI == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Connection '%s' has no uri", name),
			"Set uri to ssh://user@host/run/user/1000/podman/podman.sock or unix:///run/podman/podman.sock")
	}
	if err := ValidateURI(conn.URI); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Connection '%s' has a bad uri", name),
			"Check the 'connections' section of your config")
	}
	return nil
}

// ValidateURI checks a connection URI has a supported scheme and the parts that scheme needs.
func ValidateURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "ssh", "tcp":
		if u.Hostname() == "" {
			return fmt.Errorf("%s URI %q has no host", u.Scheme, uri)
		}
	case "unix":
		if u.Path == "" {
			return fmt.Errorf("unix URI %q has no socket path", uri)
		}
	case "":
		return fmt.Errorf("URI %q has no scheme (ssh://, unix:// or tcp://)", uri)
	default:
		return fmt.Errorf("unsupported scheme %q in %q", u.Scheme, uri)
	}
	return nil
}
