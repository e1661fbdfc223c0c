package handlers

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/remote"
	"github.com/rileyhilliard/rpod/internal/transport"
)

type system struct {
	opts  options.Set
	build BuildInfo
}

// NewSystem builds the system handler. build is reported by version.
func NewSystem(opts options.Set, build BuildInfo) (action.Handler, error) {
	h := &system{opts: opts, build: build}
	return operations{
		"ping":    h.ping,
		"version": h.version,
		"info":    h.info,
	}, nil
}

func (h *system) ping(ctx context.Context, call action.Call) (action.Result, error) {
	rec, err := single(ctx, call, "ping", h.opts)
	if err != nil {
		return nil, err
	}
	return &TextResult{
		Text: rec.String("Response"),
		JSON: map[string]string{
			"response":   rec.String("Response"),
			"apiVersion": rec.String("APIVersion"),
			"endpoint":   call.Session.Endpoint(),
		},
	}, nil
}

type versionInfo struct {
	Version    string `json:"Version"`
	APIVersion string `json:"APIVersion"`
	GoVersion  string `json:"GoVersion,omitempty"`
	Commit     string `json:"GitCommit,omitempty"`
	OsArch     string `json:"OsArch,omitempty"`
}

func (h *system) version(ctx context.Context, call action.Call) (action.Result, error) {
	client := versionInfo{
		Version:    h.build.Version,
		APIVersion: transport.APIVersion,
		GoVersion:  runtime.Version(),
		Commit:     h.build.Commit,
		OsArch:     runtime.GOOS + "/" + runtime.GOARCH,
	}

	rec, err := single(ctx, call, "version", h.opts)
	if err != nil {
		return nil, err
	}
	server := versionInfo{
		Version:    rec.String("Version"),
		APIVersion: call.Session.ServerVersion(),
		GoVersion:  rec.String("GoVersion"),
		Commit:     rec.String("GitCommit"),
	}
	if osName, arch := rec.String("Os"), rec.String("Arch"); osName != "" {
		server.OsArch = osName + "/" + arch
	}

	var b strings.Builder
	writeVersion(&b, "Client", client)
	b.WriteString("\n")
	writeVersion(&b, "Server", server)

	return &TextResult{
		Text: strings.TrimRight(b.String(), "\n"),
		JSON: map[string]versionInfo{"Client": client, "Server": server},
	}, nil
}

func writeVersion(b *strings.Builder, title string, v versionInfo) {
	fmt.Fprintf(b, "%s:\n", title)
	row := func(key, val string) {
		if val != "" {
			fmt.Fprintf(b, "  %-12s %s\n", key+":", val)
		}
	}
	row("Version", v.Version)
	row("API Version", v.APIVersion)
	row("Go Version", v.GoVersion)
	row("Git Commit", v.Commit)
	row("OS/Arch", v.OsArch)
}

func (h *system) info(ctx context.Context, call action.Call) (action.Result, error) {
	rec, err := single(ctx, call, "info", h.opts)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Value: map[string]any(rec)}, nil
}

// single runs an operation that answers with exactly one object.
func single(ctx context.Context, call action.Call, opName string, opts options.Set) (remote.Record, error) {
	stream, err := remote.Invoke(ctx, call.Session, opName, opts)
	if err != nil {
		return nil, err
	}
	records, err := stream.All()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return remote.Record{}, nil
	}
	return records[0], nil
}
