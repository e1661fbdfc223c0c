package handlers

import (
	"context"
	"strings"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
	"github.com/rileyhilliard/rpod/internal/util"
)

// Container option keys beyond the shared list flags.
const (
	OptLast = "last"
	OptSize = "size"
	OptPod  = "pod"
)

const commandWidth = 20

type containers struct {
	opts options.Set
	view view
}

// NewContainers builds the containers handler.
func NewContainers(opts options.Set) (action.Handler, error) {
	if last, ok := opts.Int(OptLast); ok && last < 0 {
		return nil, errors.New(errors.ErrConfig, "--last can't be negative", "")
	}
	if t, ok := opts.Int(options.Time); ok && t < 0 {
		return nil, errors.New(errors.ErrConfig, "--time can't be negative", "")
	}

	h := &containers{opts: opts, view: viewOf(opts)}
	return operations{
		"list":    h.list,
		"inspect": h.inspect,
		"start":   h.start,
		"stop":    h.stop,
		"kill":    h.kill,
		"remove":  h.remove,
	}, nil
}

func (h *containers) list(ctx context.Context, call action.Call) (action.Result, error) {
	opts := h.opts
	// --last implies looking at stopped containers too
	if _, ok := opts.Int(OptLast); ok && !opts.Has(options.All) {
		opts = opts.With(options.All, true)
	}
	stream, err := remote.Invoke(ctx, call.Session, "list_containers", opts)
	if err != nil {
		return nil, err
	}

	columns := []string{"CONTAINER ID", "IMAGE", "COMMAND", "CREATED", "STATUS", "NAMES"}
	withPod := h.opts.BoolOr(OptPod, false)
	if withPod {
		columns = append(columns, "POD ID", "PODNAME")
	}
	return h.view.list(stream, columns, func(rec remote.Record, truncate bool) [][]string {
		id, command := rec.ID(), strings.Join(rec.Strings("Command"), " ")
		if truncate {
			id = remote.ShortID(id)
			command = util.Truncate(command, commandWidth)
		}
		row := []string{
			id,
			rec.String("Image"),
			command,
			created(rec, "Created"),
			rec.String("Status"),
			strings.Join(rec.Strings("Names"), ","),
		}
		if withPod {
			pod := rec.String("Pod")
			if truncate {
				pod = remote.ShortID(pod)
			}
			row = append(row, pod, rec.String("PodName"))
		}
		return [][]string{row}
	}), nil
}

func (h *containers) inspect(ctx context.Context, call action.Call) (action.Result, error) {
	return inspect(ctx, call, "inspect_container", h.opts)
}

func (h *containers) start(ctx context.Context, call action.Call) (action.Result, error) {
	return batch(ctx, call, "start_container", h.opts, call.Args)
}

func (h *containers) stop(ctx context.Context, call action.Call) (action.Result, error) {
	return h.batchAll(ctx, call, "stop_container", false)
}

func (h *containers) kill(ctx context.Context, call action.Call) (action.Result, error) {
	return h.batchAll(ctx, call, "kill_container", false)
}

func (h *containers) remove(ctx context.Context, call action.Call) (action.Result, error) {
	return h.batchAll(ctx, call, "remove_container", true)
}

// batchAll runs opName over the explicit arguments, or with --all over every
// running container (every container when includeStopped is set). --all
// matching nothing is not an error.
func (h *containers) batchAll(ctx context.Context, call action.Call, opName string, includeStopped bool) (action.Result, error) {
	if !h.opts.BoolOr(options.All, false) {
		return batch(ctx, call, opName, h.opts, call.Args)
	}
	if len(call.Args) > 0 {
		return nil, errors.New(errors.ErrConfig, "--all and explicit containers are mutually exclusive", "")
	}

	listOpts := options.New(nil)
	if includeStopped {
		listOpts = listOpts.With(options.All, true)
	}
	ids, err := listIDs(ctx, call, "list_containers", listOpts)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &BatchResult{}, nil
	}
	return batch(ctx, call, opName, h.opts, ids)
}
