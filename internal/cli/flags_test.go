package cli

import (
	"testing"
	"time"

	"github.com/rileyhilliard/rpod/internal/config"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConnectionEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvRemoteURI, EnvLocalURI, EnvIdentityFile, EnvHost, EnvIgnoreHosts, EnvKnownHosts} {
		t.Setenv(env, "")
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Default = "devbox"
	cfg.Timeout = 30 * time.Second
	cfg.Connections = map[string]config.Connection{
		"devbox": {URI: "ssh://core@devbox/run/user/1000/podman/podman.sock", Identity: "/keys/devbox", KnownHosts: "/keys/known"},
		"local":  {URI: "unix:///run/podman/podman.sock"},
	}
	return cfg
}

func resolve(t *testing.T, cfg *config.Config, args ...string) (transport.Target, error) {
	t.Helper()
	var f globalFlags
	fs := pflag.NewFlagSet("rpod", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse(args))
	return f.resolveTarget(fs, cfg)
}

func TestResolveTarget_Precedence(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		env  map[string]string
		args []string
		want transport.Target
	}{
		{
			name: "built-in defaults",
			cfg:  config.DefaultConfig(),
			want: transport.Target{Retry: transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond}},
		},
		{
			name: "default connection",
			cfg:  testConfig(),
			want: transport.Target{
				RemoteURI:    "ssh://core@devbox/run/user/1000/podman/podman.sock",
				IdentityFile: "/keys/devbox",
				KnownHosts:   "/keys/known",
				Timeout:      30 * time.Second,
				Retry:        transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "explicit endpoint skips the default connection",
			cfg:  testConfig(),
			args: []string{"--local-uri", "tcp://127.0.0.1:8080"},
			want: transport.Target{
				LocalURI: "tcp://127.0.0.1:8080",
				Timeout:  30 * time.Second,
				Retry:    transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "named unix connection is a local uri",
			cfg:  testConfig(),
			args: []string{"--connection", "local"},
			want: transport.Target{
				LocalURI: "unix:///run/podman/podman.sock",
				Timeout:  30 * time.Second,
				Retry:    transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "flags override connection fields",
			cfg:  testConfig(),
			args: []string{"--connection", "devbox", "--identity-file", "/keys/other", "--ignore-hosts", "--timeout", "5s", "--retries", "3"},
			want: transport.Target{
				RemoteURI:    "ssh://core@devbox/run/user/1000/podman/podman.sock",
				IdentityFile: "/keys/other",
				KnownHosts:   "/keys/known",
				IgnoreHosts:  true,
				Timeout:      5 * time.Second,
				Retry:        transport.RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "env overrides connection, flag overrides env",
			cfg:  testConfig(),
			env:  map[string]string{EnvRemoteURI: "ssh://env@host", EnvIdentityFile: "/keys/env", EnvIgnoreHosts: "true"},
			args: []string{"--connection", "devbox", "--identity-file", "/keys/flag"},
			want: transport.Target{
				RemoteURI:    "ssh://env@host",
				IdentityFile: "/keys/flag",
				KnownHosts:   "/keys/known",
				IgnoreHosts:  true,
				Timeout:      30 * time.Second,
				Retry:        transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "host is shorthand for an ssh remote uri",
			cfg:  config.DefaultConfig(),
			args: []string{"--host", "core@box:2222"},
			want: transport.Target{
				RemoteURI: "ssh://core@box:2222",
				Retry:     transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "remote uri wins over host",
			cfg:  config.DefaultConfig(),
			args: []string{"--host", "core@box", "--remote-uri", "ssh://admin@other/run/podman.sock"},
			want: transport.Target{
				RemoteURI: "ssh://admin@other/run/podman.sock",
				Retry:     transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
		{
			name: "host from env",
			cfg:  config.DefaultConfig(),
			env:  map[string]string{EnvHost: "devbox"},
			want: transport.Target{
				RemoteURI: "ssh://devbox",
				Retry:     transport.RetryPolicy{Attempts: 1, Backoff: 500 * time.Millisecond},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConnectionEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := resolve(t, tt.cfg, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTarget_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{name: "unknown connection", args: []string{"--connection", "nope"}, want: "No connection named 'nope'"},
		{name: "bad ignore-hosts env", env: map[string]string{EnvIgnoreHosts: "sometimes"}, want: EnvIgnoreHosts},
		{name: "negative timeout", args: []string{"--timeout=-1s"}, want: "--timeout"},
		{name: "zero retries", args: []string{"--retries", "0"}, want: "--retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConnectionEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := resolve(t, testConfig(), tt.args...)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGlobalFlags_Registered(t *testing.T) {
	root := newRootCmd(&App{})
	for _, name := range []string{
		"remote-uri", "local-uri", "identity-file", "host", "ignore-hosts", "known-hosts",
		"connection", "timeout", "retries", "config", "json", "debug",
	} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}
