package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddConnection_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpod", "config.yaml")

	require.NoError(t, AddConnection(path, "DevBox", Connection{URI: "ssh://core@devbox", Identity: "~/.ssh/id_ed25519"}, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
	assert.Contains(t, string(data), "identity: ~/.ssh/id_ed25519", "written paths stay unexpanded")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "devbox", cfg.Default, "the first connection becomes the default")
	assert.Equal(t, "ssh://core@devbox", cfg.Connections["devbox"].URI)
	assert.NoError(t, Validate(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAddConnection_PreservesComments(t *testing.T) {
	path := writeConfig(t, `# my rpod setup
version: 1
default: devbox
connections:
  devbox: # the big one
    uri: ssh://devbox
`)

	require.NoError(t, AddConnection(path, "staging", Connection{URI: "ssh://staging", IgnoreHosts: true}, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# my rpod setup")
	assert.Contains(t, string(data), "# the big one")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "devbox", cfg.Default, "adding doesn't steal the default")
	assert.True(t, cfg.Connections["staging"].IgnoreHosts)
}

func TestAddConnection_ReplacesAndMakesDefault(t *testing.T) {
	path := writeConfig(t, "default: devbox\nconnections:\n  devbox:\n    uri: ssh://devbox\n  staging:\n    uri: ssh://old\n")

	require.NoError(t, AddConnection(path, "staging", Connection{URI: "ssh://new"}, true))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Default)
	assert.Equal(t, "ssh://new", cfg.Connections["staging"].URI)
	assert.Len(t, cfg.Connections, 2)
}

func TestAddConnection_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := AddConnection(path, "bad name", Connection{URI: "ssh://x"}, false)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	err = AddConnection(path, "ok", Connection{URI: "ftp://x"}, false)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	assert.NoFileExists(t, path, "nothing is written for invalid input")
}

func TestRemoveConnection(t *testing.T) {
	path := writeConfig(t, "default: devbox\nconnections:\n  devbox:\n    uri: ssh://devbox\n  staging:\n    uri: ssh://staging\n")

	require.NoError(t, RemoveConnection(path, "staging"))
	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"devbox"}, cfg.ConnectionNames())
	assert.Equal(t, "devbox", cfg.Default)

	require.NoError(t, RemoveConnection(path, "devbox"))
	cfg, err = Load(path, true)
	require.NoError(t, err)
	assert.Empty(t, cfg.Connections)
	assert.Empty(t, cfg.Default, "removing the default clears it")
	assert.NoError(t, Validate(cfg))

	err = RemoveConnection(path, "devbox")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestSetDefault(t *testing.T) {
	path := writeConfig(t, "connections:\n  devbox:\n    uri: ssh://devbox\n  staging:\n    uri: ssh://staging\n")

	require.NoError(t, SetDefault(path, "staging"))
	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Default)

	err = SetDefault(path, "prod")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestEditFile_ConcurrentWritersDontClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, AddConnection(path, fmt.Sprintf("host%d", i), Connection{URI: fmt.Sprintf("ssh://host%d", i)}, false))
		}(i)
	}
	wg.Wait()

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Len(t, cfg.Connections, 8)
}

func TestEditFile_LockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	held := flock.New(path + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	prev := LockTimeout
	LockTimeout = 100 * time.Millisecond
	defer func() { LockTimeout = prev }()

	err = AddConnection(path, "devbox", Connection{URI: "ssh://devbox"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Another rpod is updating the config")
}
