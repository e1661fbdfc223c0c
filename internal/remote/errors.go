package remote

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/transport"
)

var arrayType = reflect.TypeOf([]Record(nil))

// daemonError is the error body libpod sends with 4xx and 5xx responses.
type daemonError struct {
	Cause    string `json:"cause"`
	Message  string `json:"message"`
	Response int    `json:"response"`
}

// statusError maps a failed response to a call-scoped RemoteError.
func statusError(op Operation, id string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var de daemonError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &de) == nil && de.Message != "" {
		msg = de.Message
	}
	if msg == "" {
		msg = resp.Status
	}

	subject := op.Name
	if id != "" {
		subject = fmt.Sprintf("%s %s", op.Name, id)
	}
	cause := fmt.Errorf("%s", msg)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NewRemote(errors.KindNotFound, false, cause,
			fmt.Sprintf("%s: not found", subject), "")
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewRemote(errors.KindPermissionDenied, false, cause,
			fmt.Sprintf("%s: permission denied", subject),
			"Check that your user may manage this object on the daemon")
	default:
		return errors.NewRemote(errors.KindOperationFailed, false, cause,
			fmt.Sprintf("%s failed (%s)", subject, resp.Status), "")
	}
}

// transportError maps a failure to get any response at all. These end the session.
func transportError(op Operation, err error) error {
	if transport.IsTimeout(err) {
		return errors.NewRemote(errors.KindTimeout, true, err,
			fmt.Sprintf("%s timed out", op.Name),
			"Raise --timeout, or check the daemon's load")
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.NewRemote(errors.KindTimeout, true, err,
			fmt.Sprintf("%s cancelled", op.Name), "")
	}
	return errors.NewRemote(errors.KindDaemonUnavailable, true, err,
		fmt.Sprintf("Lost the daemon during %s", op.Name),
		"Check the daemon is still running: rpod ping")
}

func protocolError(op string, detail string, cause error) error {
	return errors.NewRemote(errors.KindProtocolMismatch, true, cause,
		fmt.Sprintf("%s: unexpected response from daemon (%s)", op, detail),
		fmt.Sprintf("rpod speaks libpod API v%s. Check the daemon version with: rpod version", transport.APIVersion))
}

// streamError maps a failure while decoding a response body.
func streamError(op string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr), stderrors.As(err, &typeErr), stderrors.Is(err, io.ErrUnexpectedEOF), stderrors.Is(err, io.EOF):
		return protocolError(op, "malformed JSON", err)
	case transport.IsTimeout(err):
		return errors.NewRemote(errors.KindTimeout, true, err,
			fmt.Sprintf("%s timed out while reading results", op), "")
	default:
		return errors.NewRemote(errors.KindDaemonUnavailable, true, err,
			fmt.Sprintf("Lost the daemon while reading %s results", op), "")
	}
}

// checkVersion rejects a daemon whose API major version differs from ours.
// A missing header is accepted.
func checkVersion(op Operation, resp *http.Response) error {
	v := resp.Header.Get("Libpod-API-Version")
	if v == "" {
		return nil
	}
	if major(v) != major(transport.APIVersion) {
		return protocolError(op.Name, fmt.Sprintf("daemon API v%s", v), nil)
	}
	return nil
}

func major(v string) string {
	v = strings.TrimPrefix(v, "v")
	if i := strings.Index(v, "."); i >= 0 {
		return v[:i]
	}
	return v
}
