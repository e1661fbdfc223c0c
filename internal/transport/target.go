package transport

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/rpod/internal/errors"
)

// RootSocket is where a rootful daemon listens.
const RootSocket = "/run/podman/podman.sock"

// RetryPolicy bounds reconnection after Timeout or Unreachable failures.
// The zero value makes exactly one attempt.
type RetryPolicy struct {
	Attempts int           // total attempts, values below 1 mean 1
	Backoff  time.Duration // wait before attempt n+1 is n*Backoff
}

// attempts returns the normalized attempt count.
func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Target describes where the daemon is and how to authenticate to it.
// It is built once per invocation and never mutated.
type Target struct {
	// LocalURI is the daemon endpoint: unix:///path or tcp://host:port.
	// With a RemoteURI it names the socket on the remote machine.
	LocalURI string

	// RemoteURI is ssh://[user@]host[:port][/socket]. Empty means connect directly.
	RemoteURI string

	IdentityFile string
	IgnoreHosts  bool
	KnownHosts   string

	// Timeout bounds connection setup and each request. Zero means no timeout.
	Timeout time.Duration

	Retry RetryPolicy
}

// IsRemote reports whether the target needs an SSH tunnel.
func (t Target) IsRemote() bool {
	return t.RemoteURI != ""
}

// String renders the target for logs and debug output.
func (t Target) String() string {
	return fmt.Sprintf("Target(local_uri='%s', remote_uri='%s', identity_file='%s', ignore_hosts='%t', known_hosts='%s')",
		t.LocalURI, t.RemoteURI, t.IdentityFile, t.IgnoreHosts, t.KnownHosts)
}

// Validate checks that both URIs parse.
func (t Target) Validate() error {
	if _, err := t.localEndpoint(); err != nil {
		return err
	}
	if t.IsRemote() {
		if _, _, err := t.remoteEndpoint(); err != nil {
			return err
		}
	}
	return nil
}

// endpoint is a dialable daemon address.
type endpoint struct {
	network string // "unix" or "tcp"
	address string
}

func (e endpoint) String() string {
	return e.network + "://" + e.address
}

// localEndpoint parses LocalURI, falling back to DefaultLocalURI.
func (t Target) localEndpoint() (endpoint, error) {
	raw := t.LocalURI
	if raw == "" {
		raw = DefaultLocalURI()
	}

	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a valid local URI", raw),
			"Use unix:///run/podman/podman.sock or tcp://host:port")
	}

	switch u.Scheme {
	case "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return endpoint{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' has no socket path", raw),
				"Use unix:///run/podman/podman.sock")
		}
		return endpoint{network: "unix", address: path}, nil
	case "tcp":
		if u.Host == "" {
			return endpoint{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' has no host:port", raw),
				"Use tcp://host:port")
		}
		return endpoint{network: "tcp", address: u.Host}, nil
	default:
		return endpoint{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unsupported local URI scheme '%s'", u.Scheme),
			"Supported schemes: unix, tcp")
	}
}

// remoteEndpoint parses RemoteURI into the SSH destination and the daemon
// endpoint on the far side. The socket is the URI path if it has one,
// otherwise the local URI's socket.
func (t Target) remoteEndpoint() (string, endpoint, error) {
	u, err := url.Parse(t.RemoteURI)
	if err != nil {
		return "", endpoint{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a valid remote URI", t.RemoteURI),
			"Use ssh://user@host[:port]/run/podman/podman.sock")
	}
	if u.Scheme != "ssh" {
		return "", endpoint{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unsupported remote URI scheme '%s'", u.Scheme),
			"Remote connections go over SSH: ssh://user@host[:port]/path/to/socket")
	}
	if u.Hostname() == "" {
		return "", endpoint{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' has no host", t.RemoteURI),
			"Use ssh://user@host[:port]/path/to/socket")
	}

	host := u.Host
	if u.User != nil && u.User.Username() != "" {
		host = u.User.Username() + "@" + host
	}

	if u.Path != "" && u.Path != "/" {
		return host, endpoint{network: "unix", address: u.Path}, nil
	}

	if t.LocalURI != "" {
		local, err := t.localEndpoint()
		if err != nil {
			return "", endpoint{}, err
		}
		if local.network == "unix" {
			return host, local, nil
		}
	}
	return host, endpoint{network: "unix", address: RootSocket}, nil
}

// DefaultLocalURI is the daemon socket for the current user:
// the rootful socket for root, $XDG_RUNTIME_DIR/podman/podman.sock otherwise.
func DefaultLocalURI() string {
	if os.Geteuid() == 0 {
		return "unix://" + RootSocket
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join("/run/user", fmt.Sprint(os.Getuid()))
	}
	return "unix://" + filepath.Join(runtimeDir, "podman", "podman.sock")
}

// RemoteURIForHost builds an ssh:// URI from a --host value such as
// "core@devbox:2222". Values that already carry a scheme pass through.
func RemoteURIForHost(host string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "ssh://" + host
}
