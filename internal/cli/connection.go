package cli

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/rpod/internal/config"
	"github.com/rileyhilliard/rpod/internal/errors"
	"github.com/rileyhilliard/rpod/internal/ui"
	"github.com/rileyhilliard/rpod/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// socketQuery asks a remote podman where its API socket lives.
const socketQuery = `podman info --format '{{.Host.RemoteSocket.Path}}'`

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newConnectionCmd(app *App) *cobra.Command {
	cmd := newGroupCmd("connection", "Manage saved daemon connections")
	cmd.Long = `Connections are named daemon URIs saved in the config file, so
--connection NAME (or the default connection) can stand in for
--remote-uri, --identity-file and friends.`
	cmd.AddCommand(
		newConnectionListCmd(app),
		newConnectionAddCmd(app),
		newConnectionRemoveCmd(app),
		newConnectionDefaultCmd(app),
	)
	return cmd
}

type connectionEntry struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Identity    string `json:"identity,omitempty"`
	IgnoreHosts bool   `json:"ignoreHosts,omitempty"`
	KnownHosts  string `json:"knownHosts,omitempty"`
	Default     bool   `json:"default"`
}

func newConnectionListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			entries := make([]connectionEntry, 0, len(cfg.Connections))
			for _, name := range cfg.ConnectionNames() {
				conn := cfg.Connections[name]
				entries = append(entries, connectionEntry{
					Name:        name,
					URI:         conn.URI,
					Identity:    conn.Identity,
					IgnoreHosts: conn.IgnoreHosts,
					KnownHosts:  conn.KnownHosts,
					Default:     name == cfg.Default,
				})
			}

			if machineMode {
				return WriteJSONSuccess(app.Out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(app.Out, "No connections saved. Add one with: rpod connection add NAME ssh://user@host")
				return nil
			}

			rows := make([][]string, len(entries))
			for i, e := range entries {
				def := ""
				if e.Default {
					def = "*"
				}
				rows[i] = []string{e.Name, e.URI, e.Identity, def}
			}
			fmt.Fprint(app.Out, ui.RenderTable([]string{"NAME", "URI", "IDENTITY", "DEFAULT"}, rows, true))
			return nil
		},
	}
}

func newConnectionAddCmd(app *App) *cobra.Command {
	var (
		identity    string
		knownHosts  string
		socketPath  string
		port        int
		ignoreHosts bool
		makeDefault bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME DESTINATION",
		Short: "Save a daemon connection",
		Long: `Save a daemon connection under NAME.

DESTINATION is a URI (ssh://user@host[:port]/path/to/socket, unix:///path,
tcp://host:port) or a bare [user@]host, which means ssh. When an ssh
destination has no socket path, rpod logs in and asks podman for it.`,
		Example: `  rpod connection add devbox core@devbox
  rpod connection add --default --identity ~/.ssh/id_ed25519 build ssh://ci@build:2222
  rpod connection add local unix:///run/podman/podman.sock`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if err := config.ValidateConnectionName(name); err != nil {
				return err
			}

			u, err := destinationURI(args[1], port)
			if err != nil {
				return err
			}

			if u.Scheme == "ssh" {
				if socketPath != "" {
					u.Path = socketPath
				} else if u.Path == "" || u.Path == "/" {
					path, err := app.discoverSocket(u, sshutil.DialOptions{
						IdentityFile: config.ExpandPath(identity),
						KnownHosts:   config.ExpandPath(knownHosts),
						IgnoreHosts:  ignoreHosts,
						Timeout:      app.flags.timeout,
					})
					if err != nil {
						return err
					}
					u.Path = path
				}
			}

			path, _, err := app.configPath()
			if err != nil {
				return err
			}
			conn := config.Connection{
				URI:         u.String(),
				Identity:    identity,
				IgnoreHosts: ignoreHosts,
				KnownHosts:  knownHosts,
			}
			if err := config.AddConnection(path, name, conn, makeDefault); err != nil {
				return err
			}

			if machineMode {
				return WriteJSONSuccess(app.Out, connectionEntry{Name: name, URI: conn.URI, Identity: identity})
			}
			fmt.Fprintln(app.Out, ui.Success(fmt.Sprintf("Added connection %s (%s)", name, conn.URI)))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&identity, "identity", "", "SSH private key for this connection")
	fs.StringVar(&knownHosts, "known-hosts", "", "known_hosts file for this connection")
	fs.StringVar(&socketPath, "socket-path", "", "daemon socket on the remote host (skips asking podman)")
	fs.IntVarP(&port, "port", "p", 0, "SSH port")
	fs.BoolVar(&ignoreHosts, "ignore-hosts", false, "skip SSH host key verification for this connection")
	fs.BoolVarP(&makeDefault, "default", "d", false, "make this the default connection")
	return cmd
}

// destinationURI turns a connection destination into a URI. A bare
// [user@]host means ssh.
func destinationURI(dest string, port int) (*url.URL, error) {
	if !strings.Contains(dest, "://") {
		dest = "ssh://" + dest
	}
	u, err := url.Parse(dest)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a valid destination", dest),
			"Use ssh://user@host[:port], unix:///path/to/socket or tcp://host:port")
	}
	if port != 0 {
		if u.Scheme != "ssh" {
			return nil, errors.New(errors.ErrConfig,
				"--port only applies to ssh destinations", "")
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	if err := config.ValidateURI(u.String()); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a usable destination", dest),
			"Use ssh://user@host[:port], unix:///path/to/socket or tcp://host:port")
	}
	return u, nil
}

// discoverSocket logs in to the ssh destination and asks podman for its
// API socket path.
func (a *App) discoverSocket(u *url.URL, opts sshutil.DialOptions) (string, error) {
	host := u.Host
	if u.User != nil && u.User.Username() != "" {
		host = u.User.Username() + "@" + host
	}

	var socket string
	err := ui.WithSpinner(a.Err, "Asking "+host+" for its podman socket", func() error {
		tunnel, err := a.Dialer.DialTunnel(host, opts)
		if err != nil {
			if errors.IsCode(err, errors.ErrConnection) {
				return err
			}
			return errors.NewConnection(sshutil.ClassifyError(err), err,
				fmt.Sprintf("Can't open SSH connection to %s", host),
				"Check that the host is reachable: ssh "+host)
		}
		defer tunnel.Close()

		stdout, stderr, code, err := tunnel.Exec(socketQuery)
		if err != nil {
			return errors.NewConnection(errors.KindUnreachable, err,
				fmt.Sprintf("Lost the SSH connection to %s", host), "")
		}
		if code != 0 {
			return errors.WrapWithCode(
				fmt.Errorf("exit %d: %s", code, strings.TrimSpace(string(stderr))),
				errors.ErrConfig,
				fmt.Sprintf("Couldn't ask podman on %s for its socket", host),
				"Check that podman is installed there, or pass --socket-path")
		}

		socket = strings.TrimPrefix(strings.TrimSpace(string(stdout)), "unix://")
		if socket == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("podman on %s didn't report a socket", host),
				"Enable the API socket (systemctl --user enable --now podman.socket), or pass --socket-path")
		}
		return nil
	})
	return socket, err
}

func newConnectionRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a saved connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if !yes && !machineMode && stdinIsTerminal() {
				ok, err := ui.Confirm(
					fmt.Sprintf("Remove connection %s?", name),
					"Only the saved entry is deleted; nothing on the host changes.",
					false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(app.Out, "Cancelled")
					return nil
				}
			}

			path, _, err := app.configPath()
			if err != nil {
				return err
			}
			if err := config.RemoveConnection(path, name); err != nil {
				return err
			}

			if machineMode {
				return WriteJSONSuccess(app.Out, map[string]string{"removed": name})
			}
			fmt.Fprintln(app.Out, ui.Success("Removed connection "+name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	return cmd
}

func newConnectionDefaultCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "default NAME",
		Short: "Make a saved connection the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			path, _, err := app.configPath()
			if err != nil {
				return err
			}
			if err := config.SetDefault(path, name); err != nil {
				return err
			}

			if machineMode {
				return WriteJSONSuccess(app.Out, map[string]string{"default": name})
			}
			fmt.Fprintln(app.Out, ui.Success("Default connection is now "+name))
			return nil
		},
	}
}
