package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/rileyhilliard/rpod/pkg/sshutil"
)

// APIVersion is the libpod REST API version the client speaks.
const APIVersion = "4.0.0"

// APIPrefix is prepended to every request path.
const APIPrefix = "/v" + APIVersion

// baseURL is a placeholder host. The dialer ignores it and always reaches
// the session's endpoint.
const baseURL = "http://d"

type dialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Session is a verified connection to one daemon. Direct and tunnelled
// sessions look the same to callers; only the dialer differs.
type Session struct {
	target   Target
	endpoint endpoint
	client   *http.Client
	tunnel   sshutil.Tunnel

	// serverVersion is the Libpod-API-Version the daemon sent on ping.
	serverVersion string

	closeOnce sync.Once
	closeErr  error
}

func newSession(target Target, ep endpoint, dial dialContextFunc, tunnel sshutil.Tunnel) *Session {
	transport := &http.Transport{
		DialContext:         dial,
		DisableCompression:  true,
		MaxIdleConnsPerHost: 2,
	}
	return &Session{
		target:   target,
		endpoint: ep,
		tunnel:   tunnel,
		client: &http.Client{
			Transport: transport,
			Timeout:   target.Timeout,
		},
	}
}

// Target returns the target this session was opened for.
func (s *Session) Target() Target {
	return s.target
}

// Remote reports whether requests travel through an SSH tunnel.
func (s *Session) Remote() bool {
	return s.tunnel != nil
}

// Endpoint is the daemon socket as seen from where it is dialed.
func (s *Session) Endpoint() string {
	return s.endpoint.String()
}

// Host is the SSH host for tunnelled sessions, "" otherwise.
func (s *Session) Host() string {
	if s.tunnel == nil {
		return ""
	}
	return s.tunnel.GetHost()
}

// ServerVersion is the API version the daemon reported when the session was verified.
func (s *Session) ServerVersion() string {
	return s.serverVersion
}

// Tunnel returns the SSH tunnel, or nil for direct sessions.
func (s *Session) Tunnel() sshutil.Tunnel {
	return s.tunnel
}

// NewRequest builds a request for path under the API prefix.
func (s *Session) NewRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := baseURL + APIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends the request over the session.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// Close releases pooled connections and the tunnel. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.client.CloseIdleConnections()
		if s.tunnel != nil {
			s.closeErr = s.tunnel.Close()
		}
	})
	return s.closeErr
}
