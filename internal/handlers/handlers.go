// Package handlers implements the capability sets commands dispatch to:
// containers, images, pods, volumes and system.
//
// Each handler is built per invocation from the option set and exposes its
// operations by name. Operations run against the session they are handed
// and return an action.Result for the CLI to render.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
)

// Handler type names.
const (
	Containers = "containers"
	Images     = "images"
	Pods       = "pods"
	Volumes    = "volumes"
	System     = "system"
)

// BuildInfo describes the client binary for the version operation.
type BuildInfo struct {
	Version string
	Commit  string
}

// Register adds every handler type to reg.
func Register(reg *action.Registry, build BuildInfo) {
	reg.Register(Containers, NewContainers)
	reg.Register(Images, NewImages)
	reg.Register(Pods, NewPods)
	reg.Register(Volumes, NewVolumes)
	reg.Register(System, func(opts options.Set) (action.Handler, error) {
		return NewSystem(opts, build)
	})
}

// now is stubbed in tests so CREATED columns are stable.
var now = time.Now

// operations is a handler's name-to-operation table.
type operations map[string]action.Operation

func (o operations) Operation(name string) (action.Operation, bool) {
	op, ok := o[name]
	return op, ok
}

// view holds the output projection options every list shares.
type view struct {
	quiet    bool
	truncate bool
	heading  bool
}

func viewOf(opts options.Set) view {
	return view{
		quiet:    opts.BoolOr(options.Quiet, false),
		truncate: opts.BoolOr(options.Truncate, true),
		heading:  opts.BoolOr(options.Heading, true),
	}
}

func (v view) list(stream *remote.Stream, columns []string, row rowFunc) *ListResult {
	return &ListResult{
		stream:   stream,
		columns:  columns,
		row:      row,
		quiet:    v.quiet,
		truncate: v.truncate,
		heading:  v.heading,
	}
}

// inspect fetches each named object. Unlike a batch, the first failure aborts.
func inspect(ctx context.Context, call action.Call, opName string, opts options.Set) (action.Result, error) {
	if len(call.Args) == 0 {
		return nil, errors.New(errors.ErrConfig, "inspect needs at least one ID or name", "")
	}
	result := &InspectResult{}
	for _, id := range call.Args {
		stream, err := remote.Invoke(ctx, call.Session, opName, opts, id)
		if err != nil {
			return nil, err
		}
		records, err := stream.All()
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, records...)
	}
	return result, nil
}

// batch runs opName for every ID. A fatal failure is returned together
// with the items that completed before it.
func batch(ctx context.Context, call action.Call, opName string, opts options.Set, ids []string) (action.Result, error) {
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("%s needs at least one ID or name", opName),
			"Pass one or more IDs, or --all where the command supports it")
	}
	result := &BatchResult{}
	failed, err := remote.InvokeBatch(ctx, call.Session, opName, opts, ids, func(item remote.Item) {
		result.Items = append(result.Items, item)
	})
	result.Failed = failed
	return result, err
}

// listIDs returns the full IDs a list operation yields.
func listIDs(ctx context.Context, call action.Call, opName string, opts options.Set) ([]string, error) {
	stream, err := remote.Invoke(ctx, call.Session, opName, opts)
	if err != nil {
		return nil, err
	}
	return stream.IDs(false)
}

func created(rec remote.Record, key string) string {
	t, ok := rec.Time(key)
	if !ok {
		return ""
	}
	d := now().Sub(t)
	if d < 0 {
		d = 0
	}
	return units.HumanDuration(d) + " ago"
}
