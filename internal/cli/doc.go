// Package cli implements the rpod command-line interface.
//
// The command tree is built from the action table in internal/handlers:
// every action.Definition becomes one cobra command whose RunE normalizes
// the command's own flags, dispatches the action record, and renders the
// result. The general shape is:
//
//   - Command definitions (handlers.Definitions, plus connection/completion)
//   - Dispatch (action.Dispatcher over a lazily connected session.Cache)
//   - Rendering (action.Result to stdout, errors to stderr)
//
// # Command Structure
//
//	rpod ps | container ls         - List containers
//	rpod start|stop|kill|rm ID...  - Batch container operations
//	rpod images | rmi ID...        - Images
//	rpod pod ls|rm, volume ls|rm   - Pods and volumes
//	rpod info | ping | version     - Daemon information
//	rpod connection list|add|remove|default
//	rpod completion [shell]
//
// # Connection Resolution
//
// The daemon to talk to is resolved once per invocation, in order of
// precedence: explicit flags, RPOD_* environment variables, the named
// connection (--connection or the config default), then built-in defaults.
// Only the first action that needs the daemon connects; commands that never
// dispatch an action never open a session.
//
// # Output
//
// Results go to stdout and errors to stderr in the structured
// "✗ what / why / fix" layout. With --json both are wrapped in a
// JSONEnvelope on stdout.
package cli
