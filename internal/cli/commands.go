package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/handlers"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/rileyhilliard/rpod/internal/session"
	"github.com/rileyhilliard/rpod/internal/transport"
	"github.com/rileyhilliard/rpod/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandGroups are the parents of two-word commands like "container ls".
var commandGroups = []struct {
	name  string
	short string
}{
	{"container", "Manage containers"},
	{"image", "Manage images"},
	{"pod", "Manage pods"},
	{"volume", "Manage volumes"},
}

// addActionCommands adds one command per action definition under root.
func addActionCommands(root *cobra.Command, app *App) {
	parents := make(map[string]*cobra.Command)
	for _, g := range commandGroups {
		parents[g.name] = newGroupCmd(g.name, g.short)
		root.AddCommand(parents[g.name])
	}

	for _, def := range handlers.Definitions() {
		parent := root
		if len(def.Path) > 1 {
			p, ok := parents[def.Path[0]]
			if !ok {
				p = newGroupCmd(def.Path[0], "")
				parents[def.Path[0]] = p
				root.AddCommand(p)
			}
			parent = p
		}
		parent.AddCommand(newActionCmd(app, def))
	}
}

func newGroupCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
	}
}

func newActionCmd(app *App, def action.Definition) *cobra.Command {
	use := def.Name()
	if def.Args != "" {
		use += " " + def.Args
	}

	cmd := &cobra.Command{
		Use:     use,
		Aliases: def.Aliases,
		Short:   def.Short,
		Example: def.Example,
		Args:    argsFor(def),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runAction(cmd, def, args)
		},
	}
	def.ConfigureFlags(cmd.Flags())
	return cmd
}

func argsFor(def action.Definition) cobra.PositionalArgs {
	switch {
	case def.MaxArgs < 0:
		return cobra.MinimumNArgs(def.MinArgs)
	case def.MaxArgs == 0:
		return cobra.NoArgs
	default:
		return cobra.RangeArgs(def.MinArgs, def.MaxArgs)
	}
}

// runAction normalizes the command's own flags, dispatches def and renders
// whatever result came back, even alongside an error.
func (a *App) runAction(cmd *cobra.Command, def action.Definition, args []string) error {
	local := cmd.LocalFlags()
	opts, err := options.FromFlagsFunc(cmd.Flags(), func(f *pflag.Flag) bool {
		return local.Lookup(f.Name) != nil
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid flags for %s", cmd.CommandPath()),
			fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()))
	}

	cache, err := a.sessions(cmd)
	if err != nil {
		return err
	}

	d := &action.Dispatcher{
		Registry: a.registry,
		Sessions: &spinnerSessions{cache: cache, w: a.Err, label: "Connecting to " + describeTarget(cache.Target())},
		Logger:   a.log(),
	}
	res, err := d.Dispatch(cmd.Context(), action.RecordOf(def), opts, args)

	if machineMode {
		return writeJSONResult(a.Out, res, err)
	}
	if res != nil {
		if rerr := res.Render(a.Out, action.FormatTable); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return err
	}
	if res != nil {
		return res.Err()
	}
	return nil
}

// sessions returns the invocation's session cache, resolving the target
// the first time. Nothing is dialed here.
func (a *App) sessions(cmd *cobra.Command) (*session.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	target, err := a.flags.resolveTarget(cmd.Flags(), cfg)
	if err != nil {
		return nil, err
	}
	a.log().Debug("Target: remote=%q local=%q", target.RemoteURI, target.LocalURI)

	a.cache = session.NewCache(a.Transport, target)
	return a.cache, nil
}

// spinnerSessions shows a spinner while the first Get connects.
type spinnerSessions struct {
	cache *session.Cache
	w     io.Writer
	label string
}

func (s *spinnerSessions) Get(ctx context.Context) (*transport.Session, error) {
	if sess, ok := s.cache.Peek(); ok {
		return sess, nil
	}

	var sess *transport.Session
	err := ui.WithSpinner(s.w, s.label, func() error {
		var err error
		sess, err = s.cache.Get(ctx)
		return err
	})
	return sess, err
}

func describeTarget(t transport.Target) string {
	switch {
	case t.RemoteURI != "":
		return t.RemoteURI
	case t.LocalURI != "":
		return t.LocalURI
	default:
		return transport.DefaultLocalURI()
	}
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion scripts for rpod.

To load completions:

Bash:
  rpod completion bash > /etc/bash_completion.d/rpod

Zsh:
  rpod completion zsh > "${fpath[1]}/_rpod"

Fish:
  rpod completion fish > ~/.config/fish/completions/rpod.fish`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
