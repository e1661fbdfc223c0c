// Package session holds the one daemon session a process invocation uses.
package session

import (
	"context"
	"sync"

	"github.com/rileyhilliard/rpod/internal/transport"
)

// Connector opens sessions. *transport.Transport satisfies it.
type Connector interface {
	Connect(ctx context.Context, target transport.Target) (*transport.Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, target transport.Target) (*transport.Session, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, target transport.Target) (*transport.Session, error) {
	return f(ctx, target)
}

// Cache creates the session on first use and hands the same one back after.
// A failed connect is not remembered: the next Get tries again.
type Cache struct {
	connector Connector
	target    transport.Target

	mu          sync.Mutex
	sess        *transport.Session
	initialized bool
	connects    int
}

// NewCache returns a cache that connects to target through connector.
func NewCache(connector Connector, target transport.Target) *Cache {
	return &Cache{connector: connector, target: target}
}

// Target returns the target the cache connects to.
func (c *Cache) Target() transport.Target {
	return c.target
}

// Get returns the session, connecting if this is the first call.
// Concurrent first calls connect once; the others wait for it.
func (c *Cache) Get(ctx context.Context) (*transport.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.sess, nil
	}

	c.connects++
	sess, err := c.connector.Connect(ctx, c.target)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	c.initialized = true
	return sess, nil
}

// Peek returns the session if one has been created, without connecting.
func (c *Cache) Peek() (*transport.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess, c.initialized
}

// Connects returns how many times Connect was called.
func (c *Cache) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Close tears down the session if one was created. The cell is emptied, so a
// later Get would connect again.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil
	}
	err := c.sess.Close()
	c.sess = nil
	c.initialized = false
	return err
}
