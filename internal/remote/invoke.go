package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/logger"
	"github.com/rileyhilliard/rpod/internal/options"
)

// RequestIDHeader carries a per-request UUID for matching against daemon logs.
const RequestIDHeader = "X-Request-Id"

// Session is the part of a transport session the call layer needs.
// *transport.Session satisfies it.
type Session interface {
	NewRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

var log = logger.NewEnvLogger("[remote]")

// SetLogger replaces the package logger and returns a function restoring the old one.
func SetLogger(l logger.Logger) func() {
	prev := log
	log = l
	return func() { log = prev }
}

// Invoke runs the named operation. args fill the {id} placeholder for
// per-object operations. Non-list operations yield zero or one record.
//
// Errors are REMOTE errors; Fatal is set when the session is no longer usable.
func Invoke(ctx context.Context, sess Session, name string, opts options.Set, args ...string) (*Stream, error) {
	op, ok := Lookup(name)
	if !ok {
		return nil, errors.NewAction(errors.KindUnknownOperation, nil,
			fmt.Sprintf("No daemon operation named '%s'", name))
	}

	id := ""
	if op.NeedsID() {
		if len(args) == 0 || args[0] == "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("%s needs an ID or name", name), "")
		}
		id = args[0]
	}

	req, err := sess.NewRequest(ctx, op.Method, op.path(id), op.query(opts), nil)
	if err != nil {
		return nil, transportError(op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	if op.Text {
		req.Header.Set("Accept", "text/plain")
	}

	log.Debug("%s %s request=%s", op.Method, req.URL.RequestURI(), requestID)

	resp, err := sess.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	log.Debug("%s request=%s", resp.Status, requestID)

	return decodeResponse(op, id, resp)
}

func decodeResponse(op Operation, id string, resp *http.Response) (*Stream, error) {
	if err := checkVersion(op, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, statusError(op, id, resp)
	}

	// 204 No Content, and 304 for start of a running container or stop of a stopped one
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified || resp.ContentLength == 0 {
		resp.Body.Close()
		return newSliceStream(op.Name, nil), nil
	}

	if op.Text {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, streamError(op.Name, err)
		}
		return newSliceStream(op.Name, []Record{{
			"Response":   strings.TrimSpace(string(body)),
			"APIVersion": resp.Header.Get("Libpod-API-Version"),
		}}), nil
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		return nil, protocolError(op.Name, fmt.Sprintf("content type %q", resp.Header.Get("Content-Type")), nil)
	}

	if op.List {
		return newArrayStream(op.Name, resp.Body), nil
	}

	defer resp.Body.Close()
	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, streamError(op.Name, err)
	}
	switch t := v.(type) {
	case nil:
		return newSliceStream(op.Name, nil), nil
	case map[string]any:
		return newSliceStream(op.Name, []Record{t}), nil
	case []any:
		records := make([]Record, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return newSliceStream(op.Name, records), nil
	default:
		return nil, protocolError(op.Name, fmt.Sprintf("JSON %T", v), nil)
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}

// Item is the outcome of one ID in a batch.
type Item struct {
	ID      string
	Records []Record
	Err     error
}

// ReportFunc receives each batch item as it completes.
type ReportFunc func(Item)

// InvokeBatch runs a per-object operation for each ID in order. Call-scoped
// failures are reported and the batch continues. The first fatal failure
// stops the batch and is returned without being reported.
// failed counts the items that did not succeed.
func InvokeBatch(ctx context.Context, sess Session, name string, opts options.Set, ids []string, report ReportFunc) (failed int, err error) {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			op, _ := Lookup(name)
			op.Name = name
			return failed, transportError(op, err)
		}

		stream, err := Invoke(ctx, sess, name, opts, id)
		var records []Record
		if err == nil {
			records, err = stream.All()
		}

		if err != nil {
			failed++
			if errors.IsFatal(err) {
				return failed, err
			}
		}
		if report != nil {
			report(Item{ID: id, Records: records, Err: err})
		}
	}
	return failed, nil
}
