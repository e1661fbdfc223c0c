package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/rpod/internal/config"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/spf13/pflag"
)

// Environment variables that stand in for the connection flags.
const (
	EnvRemoteURI    = "RPOD_REMOTE_URI"
	EnvLocalURI     = "RPOD_LOCAL_URI"
	EnvIdentityFile = "RPOD_IDENTITY_FILE"
	EnvHost         = "RPOD_HOST"
	EnvIgnoreHosts  = "RPOD_IGNORE_HOSTS"
	EnvKnownHosts   = "RPOD_KNOWN_HOSTS"
)

// globalFlags are the persistent flags every command inherits.
type globalFlags struct {
	remoteURI    string
	localURI     string
	identityFile string
	host         string
	ignoreHosts  bool
	knownHosts   string

	connection string
	timeout    time.Duration
	retries    int
	configPath string
	json       bool
	debug      bool
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.remoteURI, "remote-uri", "", "remote daemon URI (ssh://user@host[:port]/path/to/socket)")
	fs.StringVar(&f.localURI, "local-uri", "", "daemon URI on this machine (unix:///path/to/socket or tcp://host:port)")
	fs.StringVar(&f.identityFile, "identity-file", "", "SSH private key for remote connections")
	fs.StringVar(&f.host, "host", "", "remote host, shorthand for --remote-uri ssh://HOST")
	fs.BoolVar(&f.ignoreHosts, "ignore-hosts", false, "skip SSH host key verification")
	fs.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file used to verify the remote host")

	fs.StringVar(&f.connection, "connection", "", "named connection from the config file")
	fs.DurationVar(&f.timeout, "timeout", 0, "connect and call timeout, 0 for none")
	fs.IntVar(&f.retries, "retries", 0, "connection attempts when the daemon is unreachable or times out")
	fs.StringVar(&f.configPath, "config", "", "config file (default ~/.config/rpod/config.yaml)")
	fs.BoolVar(&f.json, "json", false, "machine-readable JSON output")
	fs.BoolVar(&f.debug, "debug", false, "print debug logging to stderr")
}

// stringSetting returns the flag value if it was set, else the env value.
func stringSetting(fs *pflag.FlagSet, flag, value, env string) (string, bool) {
	if fs.Changed(flag) {
		return value, true
	}
	if v := os.Getenv(env); v != "" {
		return v, true
	}
	return "", false
}

// explicitEndpoint reports whether a daemon endpoint was named by flag or env.
func (f *globalFlags) explicitEndpoint(fs *pflag.FlagSet) bool {
	for _, s := range [][3]string{
		{"remote-uri", f.remoteURI, EnvRemoteURI},
		{"host", f.host, EnvHost},
		{"local-uri", f.localURI, EnvLocalURI},
	} {
		if _, ok := stringSetting(fs, s[0], s[1], s[2]); ok {
			return true
		}
	}
	return false
}

// selectConnection picks the named connection to start from. --connection
// always applies; the config default only when no endpoint was given.
func (f *globalFlags) selectConnection(fs *pflag.FlagSet, cfg *config.Config) (*config.Connection, error) {
	name := ""
	switch {
	case fs.Changed("connection"):
		name = f.connection
	case !f.explicitEndpoint(fs):
		name = cfg.Default
	}
	if name == "" {
		return nil, nil
	}

	conn, err := cfg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// resolveTarget builds the connection target: flags, then RPOD_*
// environment, then the selected connection, then defaults.
func (f *globalFlags) resolveTarget(fs *pflag.FlagSet, cfg *config.Config) (transport.Target, error) {
	var target transport.Target

	conn, err := f.selectConnection(fs, cfg)
	if err != nil {
		return target, err
	}
	if conn != nil {
		if strings.HasPrefix(conn.URI, "ssh://") {
			target.RemoteURI = conn.URI
		} else {
			target.LocalURI = conn.URI
		}
		target.IdentityFile = conn.Identity
		target.KnownHosts = conn.KnownHosts
		target.IgnoreHosts = conn.IgnoreHosts
	}

	if remote, ok := stringSetting(fs, "remote-uri", f.remoteURI, EnvRemoteURI); ok {
		target.RemoteURI = remote
	} else if host, ok := stringSetting(fs, "host", f.host, EnvHost); ok {
		target.RemoteURI = transport.RemoteURIForHost(host)
	}
	if local, ok := stringSetting(fs, "local-uri", f.localURI, EnvLocalURI); ok {
		target.LocalURI = local
	}
	if identity, ok := stringSetting(fs, "identity-file", f.identityFile, EnvIdentityFile); ok {
		target.IdentityFile = config.ExpandPath(identity)
	}
	if knownHosts, ok := stringSetting(fs, "known-hosts", f.knownHosts, EnvKnownHosts); ok {
		target.KnownHosts = config.ExpandPath(knownHosts)
	}

	switch {
	case fs.Changed("ignore-hosts"):
		target.IgnoreHosts = f.ignoreHosts
	case os.Getenv(EnvIgnoreHosts) != "":
		v, err := strconv.ParseBool(os.Getenv(EnvIgnoreHosts))
		if err != nil {
			return target, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("%s=%q is not a boolean", EnvIgnoreHosts, os.Getenv(EnvIgnoreHosts)),
				"Use true or false")
		}
		target.IgnoreHosts = v
	}

	target.Timeout = cfg.Timeout
	if fs.Changed("timeout") {
		if f.timeout < 0 {
			return target, errors.New(errors.ErrConfig,
				fmt.Sprintf("--timeout %s is negative", f.timeout),
				"Use 0 for no timeout")
		}
		target.Timeout = f.timeout
	}

	target.Retry = transport.RetryPolicy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}
	if fs.Changed("retries") {
		if f.retries < 1 {
			return target, errors.New(errors.ErrConfig,
				fmt.Sprintf("--retries %d is less than one attempt", f.retries),
				"Use --retries 1 to connect once")
		}
		target.Retry.Attempts = f.retries
	}

	return target, nil
}
