package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/rpod/internal/logger"
	daemontesting "github.com/rileyhilliard/rpod/internal/remote/testing"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/rileyhilliard/rpod/internal/ui"
	sshtesting "github.com/rileyhilliard/rpod/pkg/sshutil/testing"
	"github.com/stretchr/testify/require"
)

const (
	webID = "3f1c9a2b7d4e5f60718293a4b5c6d7e8f9012345678901234567890abcdef12"
	dbID  = "9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a2918273645546372819a0b1c2d3e4f"

	localURI = "unix:///run/podman/podman.sock"
)

func TestMain(m *testing.M) {
	ui.DisableColors()
	stdinIsTerminal = func() bool { return false }
	os.Exit(m.Run())
}

// harness runs the command tree against a fake daemon. Local connections
// dial the daemon directly; SSH connections go through a mock tunnel that
// dials the same daemon.
type harness struct {
	t          *testing.T
	daemon     *daemontesting.Daemon
	tunnel     *sshtesting.MockClient
	dialer     *sshtesting.MockDialer
	configPath string

	out    bytes.Buffer
	errOut bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RPOD_CONFIG", configPath)
	for _, env := range []string{
		EnvRemoteURI, EnvLocalURI, EnvIdentityFile, EnvHost, EnvIgnoreHosts, EnvKnownHosts,
		"RPOD_CONNECTION", "RPOD_TIMEOUT", "RPOD_RETRIES", "RPOD_RETRY_BACKOFF",
	} {
		t.Setenv(env, "")
	}

	d := daemontesting.NewDaemon()
	t.Cleanup(func() { d.Close() })

	d.AddContainer(
		daemontesting.Container{ID: webID, Names: []string{"web"}, Image: "docker.io/library/nginx:latest",
			Command: []string{"nginx"}, State: "running", Status: "Up 2 hours", Created: time.Now().Add(-2 * time.Hour)},
		daemontesting.Container{ID: dbID, Names: []string{"db"}, Image: "docker.io/library/postgres:16",
			Command: []string{"postgres"}, State: "exited", Status: "Exited (0) 1 hour ago", Created: time.Now().Add(-3 * time.Hour)},
	)

	tunnel := sshtesting.NewMockClient("devbox", d.Dial)
	return &harness{
		t:          t,
		daemon:     d,
		tunnel:     tunnel,
		dialer:     &sshtesting.MockDialer{Tunnel: tunnel},
		configPath: configPath,
	}
}

// run executes one rpod invocation with a fresh command tree and returns
// its exit code. Output lands in h.out and h.errOut.
func (h *harness) run(args ...string) int {
	h.t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	defer func() {
		machineMode = false
		logger.SetDebug(false)
	}()

	app := &App{
		Transport: &transport.Transport{Dialer: h.dialer, DialLocal: h.daemon.DialContext, Logger: logger.Noop()},
		Dialer:    h.dialer,
		Out:       &h.out,
		Err:       &h.errOut,
		Logger:    logger.Noop(),
	}
	return app.run(context.Background(), newRootCmd(app), args)
}

// envelope decodes h.out as a JSON envelope with data decoded into data.
func (h *harness) envelope(data any) JSONEnvelope {
	h.t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *JSONError      `json:"error"`
	}
	require.NoError(h.t, json.Unmarshal(h.out.Bytes(), &raw), h.out.String())
	if data != nil && len(raw.Data) > 0 {
		require.NoError(h.t, json.Unmarshal(raw.Data, data))
	}
	return JSONEnvelope{Success: raw.Success, Data: data, Error: raw.Error}
}

func (h *harness) writeConfig(content string) {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(h.configPath, []byte(content), 0o600))
}
