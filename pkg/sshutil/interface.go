package sshutil

import "net"

// Tunnel is an established SSH connection that can reach sockets on the
// remote machine. Both the real Client and mock implementations satisfy it.
type Tunnel interface {
	// Dial opens a connection from the remote side, e.g. Dial("unix", "/run/podman/podman.sock").
	Dial(network, address string) (net.Conn, error)

	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection and every connection dialed through it.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Dialer establishes tunnels. Dial satisfies it through DialerFunc.
type Dialer interface {
	DialTunnel(host string, opts DialOptions) (Tunnel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(host string, opts DialOptions) (Tunnel, error)

// DialTunnel calls f.
func (f DialerFunc) DialTunnel(host string, opts DialOptions) (Tunnel, error) {
	return f(host, opts)
}

// DefaultDialer dials real SSH connections.
var DefaultDialer Dialer = DialerFunc(func(host string, opts DialOptions) (Tunnel, error) {
	client, err := Dial(host, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
})
