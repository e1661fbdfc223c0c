package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/remote"
	"github.com/rileyhilliard/rpod/internal/ui"
	"gopkg.in/yaml.v3"
)

// rowFunc projects a record onto table rows, usually one. truncate is the
// --no-trunc inverse.
type rowFunc func(rec remote.Record, truncate bool) [][]string

// ListResult renders a list stream as a table, bare IDs, or JSON.
// The stream is drained during Render, so a ListResult renders once.
type ListResult struct {
	stream   *remote.Stream
	columns  []string
	row      rowFunc
	quiet    bool
	truncate bool
	heading  bool
}

func (r *ListResult) Render(w io.Writer, format action.Format) error {
	defer r.stream.Close()

	if r.quiet {
		if format == action.FormatJSON {
			ids, err := r.stream.IDs(r.truncate)
			if err != nil {
				return err
			}
			return writeJSON(w, nonNil(ids))
		}
		for r.stream.Next() {
			if _, err := fmt.Fprintln(w, remote.QuietID(r.stream.Record(), r.truncate)); err != nil {
				return err
			}
		}
		return r.stream.Err()
	}

	records, err := r.stream.All()
	if err != nil {
		return err
	}
	if format == action.FormatJSON {
		return writeJSON(w, nonNil(records))
	}

	var rows [][]string
	for _, rec := range records {
		rows = append(rows, r.row(rec, r.truncate)...)
	}
	_, err = io.WriteString(w, ui.RenderTable(r.columns, rows, r.heading))
	return err
}

func (r *ListResult) Err() error { return nil }

// InspectResult prints full objects. Inspect output is always JSON.
type InspectResult struct {
	Records []remote.Record
}

func (r *InspectResult) Render(w io.Writer, _ action.Format) error {
	return writeJSON(w, nonNil(r.Records))
}

func (r *InspectResult) Err() error { return nil }

// BatchResult reports a per-ID operation.
type BatchResult struct {
	Items  []remote.Item
	Failed int
}

type batchItemJSON struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Error   *batchErrorJSON `json:"error,omitempty"`
}

type batchErrorJSON struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Render prints each ID that succeeded and a failure line for each that didn't.
func (r *BatchResult) Render(w io.Writer, format action.Format) error {
	if format == action.FormatJSON {
		out := make([]batchItemJSON, len(r.Items))
		for i, item := range r.Items {
			out[i] = batchItemJSON{ID: item.ID, Success: item.Err == nil}
			if item.Err != nil {
				out[i].Error = itemError(item.Err)
			}
		}
		return writeJSON(w, out)
	}

	for _, item := range r.Items {
		line := item.ID
		if item.Err != nil {
			line = ui.Failure(fmt.Sprintf("%s: %s", item.ID, describe(item.Err)))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Err is an exit-1 error when any item failed. The failures were already rendered.
func (r *BatchResult) Err() error {
	if r.Failed > 0 {
		return errors.NewExitError(1)
	}
	return nil
}

func itemError(err error) *batchErrorJSON {
	out := &batchErrorJSON{Code: "UNKNOWN", Message: err.Error()}
	if e, ok := errors.AsError(err); ok {
		out.Code = e.Code
		out.Kind = string(e.Kind)
		out.Message = describe(err)
	}
	return out
}

// describe is the one-line form of an item failure: the daemon's message when there is one.
func describe(err error) string {
	e, ok := errors.AsError(err)
	if !ok {
		return err.Error()
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// DocumentResult prints one object as YAML, or JSON when asked.
type DocumentResult struct {
	Value any
}

func (r *DocumentResult) Render(w io.Writer, format action.Format) error {
	if format == action.FormatJSON {
		return writeJSON(w, r.Value)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Value); err != nil {
		return err
	}
	return enc.Close()
}

func (r *DocumentResult) Err() error { return nil }

// TextResult prints preformatted text.
type TextResult struct {
	Text string
	JSON any
}

func (r *TextResult) Render(w io.Writer, format action.Format) error {
	if format == action.FormatJSON && r.JSON != nil {
		return writeJSON(w, r.JSON)
	}
	_, err := fmt.Fprintln(w, r.Text)
	return err
}

func (r *TextResult) Err() error { return nil }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
