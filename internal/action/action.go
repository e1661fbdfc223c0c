// Package action binds CLI subcommands to handler operations and dispatches them.
package action

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/logger"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/spf13/pflag"
)

// Action is what a subcommand declares about itself.
type Action interface {
	// ConfigureFlags registers the subcommand's flags.
	ConfigureFlags(fs *pflag.FlagSet)
	// HandlerType names the handler, e.g. "containers".
	HandlerType() string
	// OperationName names the handler operation, e.g. "list".
	OperationName() string
}

// Record is the static binding of a subcommand to a handler operation.
type Record struct {
	Handler   string
	Operation string
}

func (r Record) String() string {
	return r.Handler + "." + r.Operation
}

// RecordOf returns the binding an action declares.
func RecordOf(a Action) Record {
	return Record{Handler: a.HandlerType(), Operation: a.OperationName()}
}

// Format selects how a Result is rendered.
type Format int

const (
	FormatTable Format = iota
	FormatJSON
)

// Result is what an operation produced.
type Result interface {
	// Render writes the result to w.
	Render(w io.Writer, format Format) error
	// Err is non-nil when some items of a batch failed. Those failures were
	// already rendered; Err only decides the exit status.
	Err() error
}

// Call is everything an operation gets at invocation time.
type Call struct {
	Session *transport.Session
	Args    []string
}

// Operation runs against a live session.
type Operation func(ctx context.Context, call Call) (Result, error)

// Handler is a constructed capability set.
type Handler interface {
	// Operation resolves a name to an operation. ok is false for unknown names.
	Operation(name string) (op Operation, ok bool)
}

// Constructor builds a handler for one invocation's options.
type Constructor func(opts options.Set) (Handler, error)

// Registry maps handler type names to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a handler type. Registering a name twice replaces it.
func (r *Registry) Register(handlerType string, ctor Constructor) {
	r.ctors[handlerType] = ctor
}

// Lookup returns the constructor for handlerType.
func (r *Registry) Lookup(handlerType string) (Constructor, bool) {
	ctor, ok := r.ctors[handlerType]
	return ctor, ok
}

// Types returns the registered handler types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SessionProvider hands out the invocation's session. *session.Cache satisfies it.
type SessionProvider interface {
	Get(ctx context.Context) (*transport.Session, error)
}

// Dispatcher resolves records and runs them.
type Dispatcher struct {
	Registry *Registry
	Sessions SessionProvider
	Logger   logger.Logger
}

// Dispatch constructs the record's handler with opts, resolves the
// operation, and only then acquires the session and invokes it.
// A malformed record fails with an ACTION error before any session exists.
func (d *Dispatcher) Dispatch(ctx context.Context, rec Record, opts options.Set, args []string) (Result, error) {
	log := d.Logger
	if log == nil {
		log = logger.Noop()
	}

	op, err := d.Resolve(rec, opts)
	if err != nil {
		return nil, err
	}

	sess, err := d.Sessions.Get(ctx)
	if err != nil {
		return nil, err
	}

	log.Debug("Dispatching %s with options %v", rec, opts.Keys())
	return op(ctx, Call{Session: sess, Args: args})
}

// Resolve returns the operation a record names without invoking it.
func (d *Dispatcher) Resolve(rec Record, opts options.Set) (Operation, error) {
	ctor, ok := d.Registry.Lookup(rec.Handler)
	if !ok {
		return nil, errors.NewAction(errors.KindHandlerConstructionError, nil,
			fmt.Sprintf("No handler type '%s' (for %s)", rec.Handler, rec))
	}

	handler, err := ctor(opts)
	if err != nil {
		// Structured option errors pass through untouched.
		if e, ok := errors.AsError(err); ok && e.Code != errors.ErrAction {
			return nil, err
		}
		return nil, errors.NewAction(errors.KindHandlerConstructionError, err,
			fmt.Sprintf("Couldn't construct handler '%s'", rec.Handler))
	}
	if handler == nil {
		return nil, errors.NewAction(errors.KindHandlerConstructionError, nil,
			fmt.Sprintf("Handler '%s' constructor returned nothing", rec.Handler))
	}

	op, ok := handler.Operation(rec.Operation)
	if !ok || op == nil {
		return nil, errors.NewAction(errors.KindUnknownOperation, nil,
			fmt.Sprintf("Handler '%s' has no operation '%s'", rec.Handler, rec.Operation))
	}
	return op, nil
}
