// Package remote issues operations against a daemon session and maps the
// daemon's answers onto records and structured errors.
package remote

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rileyhilliard/rpod/internal/options"
)

// Param forwards one option as a query parameter.
type Param struct {
	Option string // key in the option set
	Query  string // query parameter name
}

// Operation is one row of the operation table.
type Operation struct {
	Name   string
	Method string
	Path   string // may contain {id}
	Params []Param
	List   bool // the response is a JSON array streamed record by record
	Text   bool // the response is plain text, not JSON
}

// NeedsID reports whether the path has an {id} placeholder.
func (o Operation) NeedsID() bool {
	return strings.Contains(o.Path, "{id}")
}

// path fills in the {id} placeholder.
func (o Operation) path(id string) string {
	return strings.ReplaceAll(o.Path, "{id}", url.PathEscape(id))
}

// query builds the query string from the options this operation forwards.
// Absent options are not sent, so the daemon applies its own default.
func (o Operation) query(opts options.Set) url.Values {
	q := url.Values{}
	for _, p := range o.Params {
		if v, ok := opts.Get(p.Option); ok {
			q.Set(p.Query, options.FormatValue(v))
		}
	}
	return q
}

var force = Param{Option: options.Force, Query: "force"}

var operations = map[string]Operation{
	"ping":    {Method: http.MethodGet, Path: "/_ping", Text: true},
	"version": {Method: http.MethodGet, Path: "/libpod/version"},
	"info":    {Method: http.MethodGet, Path: "/libpod/info"},

	"list_containers": {
		Method: http.MethodGet, Path: "/libpod/containers/json", List: true,
		Params: []Param{{Option: options.All, Query: "all"}, {Option: "last", Query: "last"}, {Option: "size", Query: "size"}},
	},
	"inspect_container": {
		Method: http.MethodGet, Path: "/libpod/containers/{id}/json",
		Params: []Param{{Option: "size", Query: "size"}},
	},
	"start_container": {Method: http.MethodPost, Path: "/libpod/containers/{id}/start"},
	"stop_container": {
		Method: http.MethodPost, Path: "/libpod/containers/{id}/stop",
		Params: []Param{{Option: options.Time, Query: "timeout"}},
	},
	"kill_container": {
		Method: http.MethodPost, Path: "/libpod/containers/{id}/kill",
		Params: []Param{{Option: options.Signal, Query: "signal"}},
	},
	"remove_container": {
		Method: http.MethodDelete, Path: "/libpod/containers/{id}",
		Params: []Param{force, {Option: options.Volumes, Query: "v"}, {Option: options.Time, Query: "timeout"}},
	},

	"list_images": {
		Method: http.MethodGet, Path: "/libpod/images/json", List: true,
		Params: []Param{{Option: options.All, Query: "all"}},
	},
	"inspect_image": {Method: http.MethodGet, Path: "/libpod/images/{id}/json"},
	"remove_image": {
		Method: http.MethodDelete, Path: "/libpod/images/{id}",
		Params: []Param{force},
	},

	"list_pods":  {Method: http.MethodGet, Path: "/libpod/pods/json", List: true},
	"remove_pod": {Method: http.MethodDelete, Path: "/libpod/pods/{id}", Params: []Param{force}},

	"list_volumes":  {Method: http.MethodGet, Path: "/libpod/volumes/json", List: true},
	"remove_volume": {Method: http.MethodDelete, Path: "/libpod/volumes/{id}", Params: []Param{force}},
}

func init() {
	for name, op := range operations {
		op.Name = name
		operations[name] = op
	}
}

// Lookup returns the named operation.
func Lookup(name string) (Operation, bool) {
	op, ok := operations[name]
	return op, ok
}

// Operations returns every operation name, sorted.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
