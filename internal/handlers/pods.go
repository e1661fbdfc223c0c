package handlers

import (
	"context"
	"strconv"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
)

type pods struct {
	opts options.Set
	view view
}

// NewPods builds the pods handler.
func NewPods(opts options.Set) (action.Handler, error) {
	h := &pods{opts: opts, view: viewOf(opts)}
	return operations{
		"list":   h.list,
		"remove": h.remove,
	}, nil
}

func (h *pods) list(ctx context.Context, call action.Call) (action.Result, error) {
	stream, err := remote.Invoke(ctx, call.Session, "list_pods", h.opts)
	if err != nil {
		return nil, err
	}
	columns := []string{"POD ID", "NAME", "STATUS", "CREATED", "INFRA ID", "# OF CONTAINERS"}
	return h.view.list(stream, columns, func(rec remote.Record, truncate bool) [][]string {
		id, infra := rec.ID(), rec.String("InfraId")
		if truncate {
			id, infra = remote.ShortID(id), remote.ShortID(infra)
		}
		return [][]string{{
			id,
			rec.String("Name"),
			rec.String("Status"),
			created(rec, "Created"),
			infra,
			strconv.Itoa(len(rec.List("Containers"))),
		}}
	}), nil
}

func (h *pods) remove(ctx context.Context, call action.Call) (action.Result, error) {
	return batch(ctx, call, "remove_pod", h.opts, call.Args)
}
