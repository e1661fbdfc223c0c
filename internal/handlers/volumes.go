package handlers

import (
	"context"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
)

type volumes struct {
	opts options.Set
	view view
}

// NewVolumes builds the volumes handler.
func NewVolumes(opts options.Set) (action.Handler, error) {
	h := &volumes{opts: opts, view: viewOf(opts)}
	return operations{
		"list":   h.list,
		"remove": h.remove,
	}, nil
}

func (h *volumes) list(ctx context.Context, call action.Call) (action.Result, error) {
	stream, err := remote.Invoke(ctx, call.Session, "list_volumes", h.opts)
	if err != nil {
		return nil, err
	}
	return h.view.list(stream, []string{"DRIVER", "VOLUME NAME"}, func(rec remote.Record, _ bool) [][]string {
		return [][]string{{rec.String("Driver"), rec.String("Name")}}
	}), nil
}

func (h *volumes) remove(ctx context.Context, call action.Call) (action.Result, error) {
	return batch(ctx, call, "remove_volume", h.opts, call.Args)
}
