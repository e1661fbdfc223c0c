package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/logger"
	daemontesting "github.com/rileyhilliard/rpod/internal/remote/testing"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingConnector wraps a real transport pointed at a fake daemon.
type countingConnector struct {
	inner *transport.Transport
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *countingConnector) Connect(ctx context.Context, target transport.Target) (*transport.Session, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, errors.NewConnection(errors.KindUnreachable, nil, "daemon down", "")
	}
	return c.inner.Connect(ctx, target)
}

func setup(t *testing.T) (*Cache, *countingConnector, *daemontesting.Daemon) {
	t.Helper()
	d := daemontesting.NewDaemon()
	t.Cleanup(func() { d.Close() })

	conn := &countingConnector{inner: &transport.Transport{DialLocal: d.DialContext, Logger: logger.Noop()}}
	cache := NewCache(conn, transport.Target{LocalURI: "unix:///run/podman.sock"})
	t.Cleanup(func() { cache.Close() })
	return cache, conn, d
}

func TestCache_GetReturnsSameSession(t *testing.T) {
	cache, conn, d := setup(t)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), conn.calls.Load())
	assert.Equal(t, 1, cache.Connects())
	assert.Len(t, d.RequestsTo("/_ping"), 1, "second Get must not reconnect")
}

func TestCache_ConcurrentGetConnectsOnce(t *testing.T) {
	cache, conn, _ := setup(t)

	const n = 16
	sessions := make([]*transport.Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.Get(context.Background())
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), conn.calls.Load())
	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
}

func TestCache_FailureIsNotCached(t *testing.T) {
	cache, conn, _ := setup(t)
	conn.fail.Store(true)

	_, err := cache.Get(context.Background())
	assert.True(t, errors.IsKind(err, errors.ErrConnection, errors.KindUnreachable))
	_, ok := cache.Peek()
	assert.False(t, ok)

	conn.fail.Store(false)
	sess, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, int32(2), conn.calls.Load())
}

func TestCache_PeekDoesNotConnect(t *testing.T) {
	cache, conn, _ := setup(t)

	sess, ok := cache.Peek()
	assert.Nil(t, sess)
	assert.False(t, ok)
	assert.Equal(t, int32(0), conn.calls.Load())
}

func TestCache_Close(t *testing.T) {
	cache, conn, _ := setup(t)

	assert.NoError(t, cache.Close(), "closing an empty cache is a no-op")

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	_, ok := cache.Peek()
	assert.False(t, ok)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), conn.calls.Load())
}

func TestConnectorFunc(t *testing.T) {
	called := false
	var c Connector = ConnectorFunc(func(ctx context.Context, target transport.Target) (*transport.Session, error) {
		called = true
		return nil, errors.NewConnection(errors.KindTimeout, nil, "x", "")
	})
	cache := NewCache(c, transport.Target{})

	_, err := cache.Get(context.Background())
	assert.Error(t, err)
	assert.True(t, called)
	assert.Equal(t, transport.Target{}, cache.Target())
}
