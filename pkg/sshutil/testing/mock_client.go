package testing

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"sync"

	"github.com/rileyhilliard/rpod/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// DialFunc opens the remote end of a forwarded connection.
type DialFunc func(network, address string) (net.Conn, error)

// MockClient simulates an SSH tunnel for testing.
// Dial is forwarded to a DialFunc (typically a fake daemon) and records
// every address asked for.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	dial     DialFunc
	closed   bool
	dialed   []string
	commands map[string]CommandResponse // pattern -> response
}

// NewMockClient creates a mock tunnel to host that forwards Dial to dial.
// A nil dial refuses every connection.
func NewMockClient(host string, dial DialFunc) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		dial:     dial,
		commands: make(map[string]CommandResponse),
	}
}

// Dial forwards to the configured DialFunc.
func (m *MockClient) Dial(network, address string) (net.Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("ssh: tunnel closed")
	}
	m.dialed = append(m.dialed, network+":"+address)
	dial := m.dial
	m.mu.Unlock()

	if dial == nil {
		return nil, fmt.Errorf("ssh: rejected: connect failed (%s %s: connection refused)", network, address)
	}
	return dial(network, address)
}

// Exec returns the response registered for cmd.
// Exact matches win over regex patterns. Unknown commands exit 127.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}

	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	return nil, []byte("sh: command not found"), 127, nil
}

// Close marks the tunnel as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Dialed returns "network:address" for every Dial call, in order.
func (m *MockClient) Dialed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dialed...)
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// MockDialer hands out a fixed tunnel, or a fixed error, and counts calls.
type MockDialer struct {
	mu      sync.Mutex
	Tunnel  sshutil.Tunnel
	Err     error
	Calls   int
	Hosts   []string
	Options []sshutil.DialOptions
}

// DialTunnel records the call and returns the configured tunnel or error.
func (d *MockDialer) DialTunnel(host string, opts sshutil.DialOptions) (sshutil.Tunnel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	d.Hosts = append(d.Hosts, host)
	d.Options = append(d.Options, opts)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Tunnel, nil
}
