package handlers

import (
	"context"
	"strings"

	"github.com/docker/go-units"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
)

const none = "<none>"

type images struct {
	opts options.Set
	view view
}

// NewImages builds the images handler.
func NewImages(opts options.Set) (action.Handler, error) {
	h := &images{opts: opts, view: viewOf(opts)}
	return operations{
		"list":    h.list,
		"inspect": h.inspect,
		"remove":  h.remove,
	}, nil
}

// list prints one row per tag. Untagged images get a single <none> row.
func (h *images) list(ctx context.Context, call action.Call) (action.Result, error) {
	stream, err := remote.Invoke(ctx, call.Session, "list_images", h.opts)
	if err != nil {
		return nil, err
	}
	columns := []string{"REPOSITORY", "TAG", "IMAGE ID", "CREATED", "SIZE"}
	return h.view.list(stream, columns, func(rec remote.Record, truncate bool) [][]string {
		id := rec.ID()
		if truncate {
			id = remote.ShortID(id)
		}
		when, size := created(rec, "Created"), units.HumanSizeWithPrecision(float64(rec.Int("Size")), 3)

		tags := rec.Strings("RepoTags")
		if len(tags) == 0 {
			return [][]string{{none, none, id, when, size}}
		}
		rows := make([][]string, len(tags))
		for i, tag := range tags {
			repo, t := splitTag(tag)
			rows[i] = []string{repo, t, id, when, size}
		}
		return rows
	}), nil
}

func (h *images) inspect(ctx context.Context, call action.Call) (action.Result, error) {
	return inspect(ctx, call, "inspect_image", h.opts)
}

func (h *images) remove(ctx context.Context, call action.Call) (action.Result, error) {
	return batch(ctx, call, "remove_image", h.opts, call.Args)
}

// splitTag splits "registry:5000/repo:tag" into repository and tag.
func splitTag(ref string) (repo, tag string) {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon <= slash {
		return ref, none
	}
	return ref[:colon], ref[colon+1:]
}
