// Package transport opens verified sessions to a container daemon, either
// directly on a local socket or through an SSH tunnel.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/logger"
	"github.com/rileyhilliard/rpod/pkg/sshutil"
)

// Transport connects to daemons. The zero value is usable and dials for real.
type Transport struct {
	// Dialer opens SSH tunnels. Nil means sshutil.DefaultDialer.
	Dialer sshutil.Dialer

	// DialLocal opens direct connections. Nil means a net.Dialer.
	DialLocal func(ctx context.Context, network, address string) (net.Conn, error)

	// Logger receives connection progress. Nil means a "[transport]" env logger.
	Logger logger.Logger
}

// New returns a Transport that dials real sockets and SSH hosts.
func New() *Transport {
	return &Transport{}
}

func (t *Transport) dialer() sshutil.Dialer {
	if t.Dialer != nil {
		return t.Dialer
	}
	return sshutil.DefaultDialer
}

func (t *Transport) dialLocal() dialContextFunc {
	if t.DialLocal != nil {
		return t.DialLocal
	}
	return (&net.Dialer{}).DialContext
}

func (t *Transport) log() logger.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return defaultLog
}

var defaultLog = logger.NewEnvLogger("[transport]")

// Connect opens and verifies a session to target. It retries Timeout and
// Unreachable failures as the target's retry policy allows; every other
// failure returns immediately. On error nothing is left open.
func (t *Transport) Connect(ctx context.Context, target Target) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	attempts := target.Retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * target.Retry.Backoff
			t.log().Debug("Retrying in %s (attempt %d/%d)", wait, attempt, attempts)
			if err := sleep(ctx, wait); err != nil {
				return nil, cancelled(err, lastErr)
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, cancelled(err, lastErr)
		}

		sess, err := t.connectOnce(ctx, target)
		if err == nil {
			return sess, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return nil, err
		}
		t.log().Debug("Connect attempt %d/%d failed: %s", attempt, attempts, errors.KindOf(err))
	}
	return nil, lastErr
}

func (t *Transport) connectOnce(ctx context.Context, target Target) (*Session, error) {
	if target.IsRemote() {
		return t.connectRemote(ctx, target)
	}
	return t.connectLocal(ctx, target)
}

func (t *Transport) connectLocal(ctx context.Context, target Target) (*Session, error) {
	ep, err := target.localEndpoint()
	if err != nil {
		return nil, err
	}
	t.log().Debug("Connecting to %s", ep)

	dial := t.dialLocal()
	sess := newSession(target, ep, func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dial(ctx, ep.network, ep.address)
	}, nil)

	if err := t.verify(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (t *Transport) connectRemote(ctx context.Context, target Target) (*Session, error) {
	host, ep, err := target.remoteEndpoint()
	if err != nil {
		return nil, err
	}
	t.log().Debug("Opening SSH tunnel to %s for %s", host, ep)

	tunnel, err := t.dialer().DialTunnel(host, sshutil.DialOptions{
		IdentityFile: target.IdentityFile,
		KnownHosts:   target.KnownHosts,
		IgnoreHosts:  target.IgnoreHosts,
		Timeout:      target.Timeout,
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrConnection) {
			return nil, err
		}
		return nil, errors.NewConnection(sshutil.ClassifyError(err), err,
			fmt.Sprintf("Can't open SSH tunnel to %s", host),
			"Check that the host is reachable: ssh "+host)
	}

	sess := newSession(target, ep, func(ctx context.Context, _, _ string) (net.Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return tunnel.Dial(ep.network, ep.address)
	}, tunnel)

	if err := t.verify(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// verify pings the daemon and records the API version it reports.
func (t *Transport) verify(ctx context.Context, sess *Session) error {
	req, err := sess.NewRequest(ctx, http.MethodGet, "/_ping", nil, nil)
	if err != nil {
		return errors.NewConnection(errors.KindUnreachable, err, "Can't build ping request", "")
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := sess.Do(req)
	if err != nil {
		return pingError(sess, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewConnection(errors.KindAuthFailure, nil,
			fmt.Sprintf("Daemon at %s refused the connection (%s)", sess.Endpoint(), resp.Status),
			"Check that your user can access the daemon socket")
	case resp.StatusCode != http.StatusOK:
		return errors.NewConnection(errors.KindUnreachable, nil,
			fmt.Sprintf("Daemon at %s answered ping with %s", sess.Endpoint(), resp.Status),
			"Is this a libpod API socket? Try: systemctl --user status podman.socket")
	}

	sess.serverVersion = resp.Header.Get("Libpod-API-Version")
	if sess.Remote() {
		t.log().Debug("Connected to %s via %s (API %s)", sess.Endpoint(), sess.Host(), sess.serverVersion)
	} else {
		t.log().Debug("Connected to %s (API %s)", sess.Endpoint(), sess.serverVersion)
	}
	return nil
}

func pingError(sess *Session, err error) error {
	where := sess.Endpoint()
	if sess.Remote() {
		where = fmt.Sprintf("%s on %s", where, sess.Host())
	}

	if IsTimeout(err) {
		return errors.NewConnection(errors.KindTimeout, err,
			fmt.Sprintf("Timed out reaching the daemon at %s", where),
			"The daemon may be overloaded. Raise --timeout or retry with --retries")
	}

	kind := sshutil.ClassifyError(err)
	suggestion := "Is the daemon running? Try: systemctl --user start podman.socket"
	if sess.Remote() {
		suggestion = fmt.Sprintf("Is the socket path right? Check on the remote host: ssh %s podman info --format '{{.Host.RemoteSocket.Path}}'", sess.Host())
	}
	return errors.NewConnection(kind, err,
		fmt.Sprintf("Can't reach the daemon at %s", where),
		suggestion)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// cancelled turns a context error into a connection error, keeping the
// last attempt's failure as the cause when there was one.
func cancelled(ctxErr, lastErr error) error {
	cause := ctxErr
	if lastErr != nil {
		cause = lastErr
	}
	return errors.NewConnection(errors.KindTimeout, cause,
		"Connection attempt cancelled", "")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
