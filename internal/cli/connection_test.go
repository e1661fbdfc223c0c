package cli

import (
	"strings"
	"testing"

	"github.com/rileyhilliard/rpod/internal/config"
	sshtesting "github.com/rileyhilliard/rpod/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) loadConfig() *config.Config {
	h.t.Helper()
	cfg, err := config.Load(h.configPath, true)
	require.NoError(h.t, err)
	return cfg
}

func TestConnectionAdd_DiscoversSocket(t *testing.T) {
	h := newHarness(t)
	h.tunnel.SetCommandResponse(socketQuery, sshtesting.CommandResponse{
		Stdout: []byte("/run/user/1000/podman/podman.sock\n"),
	})

	code := h.run("connection", "add", "--identity", "/keys/devbox", "DevBox", "core@devbox")

	require.Equal(t, 0, code, h.errOut.String())
	assert.Equal(t, "✓ Added connection devbox (ssh://core@devbox/run/user/1000/podman/podman.sock)\n", h.out.String())
	assert.Equal(t, []string{"core@devbox"}, h.dialer.Hosts)
	assert.Equal(t, "/keys/devbox", h.dialer.Options[0].IdentityFile)
	assert.True(t, h.tunnel.Closed())

	cfg := h.loadConfig()
	assert.Equal(t, "devbox", cfg.Default, "the first connection becomes the default")
	assert.Equal(t, config.Connection{
		URI:      "ssh://core@devbox/run/user/1000/podman/podman.sock",
		Identity: "/keys/devbox",
	}, cfg.Connections["devbox"])
}

func TestConnectionAdd_DiscoveryFails(t *testing.T) {
	h := newHarness(t)

	code := h.run("connection", "add", "devbox", "ssh://core@devbox")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.errOut.String(), "--socket-path")
	assert.NoFileExists(t, h.configPath)
}

func TestConnectionAdd_SocketPathAndPort(t *testing.T) {
	h := newHarness(t)

	code := h.run("connection", "add", "-p", "2222", "--socket-path", "/run/podman/podman.sock", "build", "ci@build")

	require.Equal(t, 0, code, h.errOut.String())
	assert.Zero(t, h.dialer.Calls, "an explicit socket path needs no login")
	assert.Equal(t, "ssh://ci@build:2222/run/podman/podman.sock", h.loadConfig().Connections["build"].URI)
}

func TestConnectionAdd_Local(t *testing.T) {
	h := newHarness(t)

	code := h.run("connection", "add", "local", localURI)

	require.Equal(t, 0, code, h.errOut.String())
	assert.Zero(t, h.dialer.Calls)
	assert.Equal(t, localURI, h.loadConfig().Connections["local"].URI)
}

func TestConnectionAdd_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad name", args: []string{"connection", "add", "Bad Name", localURI}},
		{name: "unknown scheme", args: []string{"connection", "add", "x", "http://devbox"}},
		{name: "port on unix", args: []string{"connection", "add", "--port", "22", "x", localURI}},
		{name: "unix without path", args: []string{"connection", "add", "x", "unix://"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.run(tt.args...))
			assert.Contains(t, h.errOut.String(), "✗ ")
			assert.NoFileExists(t, h.configPath)
		})
	}
}

func TestConnectionLifecycle(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("connection", "add", "--socket-path", "/run/podman/podman.sock", "devbox", "core@devbox"))
	require.Equal(t, 0, h.run("connection", "add", "local", localURI))

	require.Equal(t, 0, h.run("connection", "list"))
	lines := strings.Split(strings.TrimRight(h.out.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, h.out.String(), "ssh://core@devbox/run/podman/podman.sock")

	require.Equal(t, 0, h.run("connection", "default", "local"))
	assert.Equal(t, "✓ Default connection is now local\n", h.out.String())

	require.Equal(t, 0, h.run("--json", "connection", "ls"))
	var entries []connectionEntry
	env := h.envelope(&entries)
	assert.True(t, env.Success)
	require.Len(t, entries, 2)
	assert.Equal(t, "devbox", entries[0].Name)
	assert.False(t, entries[0].Default)
	assert.True(t, entries[1].Default)

	// The default connection is used by actions
	require.Equal(t, 0, h.run("ps", "-q"))
	assert.Equal(t, "3f1c9a2b7d4e\n", h.out.String())
	assert.Zero(t, h.dialer.Calls)

	require.Equal(t, 0, h.run("connection", "rm", "local"))
	assert.Equal(t, "✓ Removed connection local\n", h.out.String())

	cfg := h.loadConfig()
	assert.Empty(t, cfg.Default, "removing the default clears it")
	assert.Equal(t, []string{"devbox"}, cfg.ConnectionNames())
}

func TestConnectionList_Empty(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("connection", "list"))
	assert.Contains(t, h.out.String(), "No connections saved")

	require.Equal(t, 0, h.run("--json", "connection", "list"))
	var entries []connectionEntry
	h.envelope(&entries)
	assert.Empty(t, entries)
}

func TestConnectionRemove_Declined(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 0, h.run("connection", "add", "local", localURI))

	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	t.Cleanup(func() { stdinIsTerminal = prev })

	// The prompt itself falls back to its default (no) without a real terminal
	require.Equal(t, 0, h.run("connection", "remove", "local"))
	assert.Equal(t, "Cancelled\n", h.out.String())
	assert.Equal(t, []string{"local"}, h.loadConfig().ConnectionNames())

	require.Equal(t, 0, h.run("connection", "remove", "--yes", "local"))
	assert.Empty(t, h.loadConfig().ConnectionNames())
}

func TestConnectionRemove_Unknown(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("connection", "remove", "ghost"))
	assert.Contains(t, h.errOut.String(), "No connection named 'ghost'")
}

func TestConnectionDefault_Unknown(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("--json", "connection", "default", "ghost"))
	env := h.envelope(nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFIG", env.Error.Code)
}

func TestDestinationURI(t *testing.T) {
	u, err := destinationURI("core@devbox", 0)
	require.NoError(t, err)
	assert.Equal(t, "ssh://core@devbox", u.String())

	u, err = destinationURI("ssh://core@devbox:22/run/podman.sock", 2222)
	require.NoError(t, err)
	assert.Equal(t, "ssh://core@devbox:2222/run/podman.sock", u.String())

	u, err = destinationURI("tcp://10.0.0.5:8080", 0)
	require.NoError(t, err)
	assert.Equal(t, "tcp", u.Scheme)
}
