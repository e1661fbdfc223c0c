package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/config"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/handlers"
	"github.com/rileyhilliard/rpod/internal/logger"
	"github.com/rileyhilliard/rpod/internal/session"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/rileyhilliard/rpod/internal/ui"
	"github.com/rileyhilliard/rpod/internal/util"
	"github.com/rileyhilliard/rpod/pkg/sshutil"
	"github.com/spf13/cobra"
)

// App holds what one invocation of the command tree shares: where output
// goes, how to reach the daemon, and the session once it exists.
type App struct {
	Transport *transport.Transport
	// Dialer opens SSH connections for connection add's socket discovery.
	Dialer sshutil.Dialer
	Out    io.Writer
	Err    io.Writer
	Logger logger.Logger

	flags    globalFlags
	registry *action.Registry
	cache    *session.Cache
}

// NewApp returns an App wired to the real transport and the process's stdio.
func NewApp() *App {
	return &App{
		Transport: transport.New(),
		Dialer:    sshutil.DefaultDialer,
		Out:       os.Stdout,
		Err:       os.Stderr,
		Logger:    logger.NewEnvLogger("[rpod]"),
	}
}

func newRootCmd(app *App) *cobra.Command {
	app.registry = action.NewRegistry()
	handlers.Register(app.registry, handlers.BuildInfo{
		Version: formatVersion(version),
		Commit:  commit,
	})

	cmd := &cobra.Command{
		Use:   "rpod",
		Short: "Manage containers on local and remote podman daemons",
		Long: `rpod talks to a podman daemon's REST API, either on this machine or on a
remote host through an SSH tunnel, and manages its containers, images, pods
and volumes.

Pick the daemon with --local-uri, --remote-uri or --host, or save it once:

  rpod connection add devbox ssh://core@devbox
  rpod ps`,
		Version:            versionLine(),
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.preRun()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	app.flags.register(cmd.PersistentFlags())
	addActionCommands(cmd, app)
	cmd.AddCommand(newConnectionCmd(app), newCompletionCmd(cmd))
	return cmd
}

func (a *App) preRun() error {
	if a.flags.debug {
		logger.SetDebug(true)
	}
	machineMode = a.flags.json
	ui.ConfigureColors(a.Out)
	return nil
}

func (a *App) log() logger.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logger.Noop()
}

// configPath resolves the config file and whether the user named it.
func (a *App) configPath() (string, bool, error) {
	path, err := config.Path(a.flags.configPath)
	return path, a.flags.configPath != "", err
}

// loadConfig reads and validates the config file.
func (a *App) loadConfig() (*config.Config, error) {
	path, explicit, err := a.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a.log().Debug("Loaded config from %s", path)
	return cfg, nil
}

// close releases the session if one was opened. Safe to call twice.
func (a *App) close() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

// run executes the command tree with args and returns the process exit code.
// Errors are reported here, once.
func (a *App) run(ctx context.Context, root *cobra.Command, args []string) int {
	if args == nil {
		// cobra reads os.Args for a nil slice
		args = []string{}
	}
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		a.log().Debug("Closing session: %v", cerr)
	}
	if err == nil {
		return 0
	}
	a.reportError(root, err)
	return errors.ExitCode(err)
}

func (a *App) reportError(root *cobra.Command, err error) {
	// Already reported by the command
	if _, ok := errors.GetExitCode(err); ok {
		return
	}

	if machineMode {
		_ = WriteJSONFromError(a.Out, err)
		return
	}

	if isUnknownCommandError(err) {
		msg := ui.Failure(err.Error())
		if name := extractUnknownCommand(err); name != "" {
			if similar := util.SuggestSimilar(name, commandNames(root), 3); len(similar) > 0 {
				msg += fmt.Sprintf("\n\n  Did you mean %s?", strings.Join(similar, ", "))
			}
		}
		fmt.Fprintf(a.Err, "%s\n\n  Run '%s --help' for usage.\n", msg, root.Name())
		return
	}

	if _, ok := errors.AsError(err); ok {
		fmt.Fprint(a.Err, err.Error())
		return
	}
	fmt.Fprintln(a.Err, ui.Failure(err.Error()))
}

// Execute runs rpod with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := NewApp()
	code := app.run(ctx, newRootCmd(app), os.Args[1:])

	stop()
	sshutil.CloseAgent()
	os.Exit(code)
}

// isUnknownCommandError checks if the error is an unknown command or flag error from Cobra.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown command") ||
		strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "unknown shorthand flag")
}

// extractUnknownCommand extracts the command name from an "unknown command" error.
// Cobra's format is: unknown command "foo" for "rpod"
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// commandNames lists every distinct command name and alias in the tree.
func commandNames(root *cobra.Command) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			if sub.Hidden || sub.Name() == "help" {
				continue
			}
			for _, name := range append([]string{sub.Name()}, sub.Aliases...) {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
			walk(sub)
		}
	}
	walk(root)
	return names
}
