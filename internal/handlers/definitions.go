package handlers

import (
	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/options"
	"github.com/spf13/pflag"
)

const unlimited = -1

// Definitions is the action table. The CLI generates one command per entry.
func Definitions() []action.Definition {
	return []action.Definition{
		// containers
		{
			Path: []string{"ps"}, Short: "List containers",
			Example: "  rpod ps -a\n  rpod ps -q --no-trunc",
			Handler: Containers, Operation: "list", MaxArgs: 0,
			Flags: containerListFlags,
		},
		{
			Path: []string{"container", "ls"}, Aliases: []string{"list"}, Short: "List containers",
			Handler: Containers, Operation: "list", MaxArgs: 0,
			Flags: containerListFlags,
		},
		{
			Path: []string{"inspect"}, Short: "Show the configuration of containers",
			Handler: Containers, Operation: "inspect", Args: "CONTAINER [CONTAINER...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: inspectFlags,
		},
		{
			Path: []string{"container", "inspect"}, Short: "Show the configuration of containers",
			Handler: Containers, Operation: "inspect", Args: "CONTAINER [CONTAINER...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: inspectFlags,
		},
		{
			Path: []string{"start"}, Short: "Start one or more containers",
			Handler: Containers, Operation: "start", Args: "CONTAINER [CONTAINER...]", MinArgs: 1, MaxArgs: unlimited,
		},
		{
			Path: []string{"stop"}, Short: "Stop one or more containers",
			Example: "  rpod stop web db\n  rpod stop --all --time 2",
			Handler: Containers, Operation: "stop", Args: "CONTAINER [CONTAINER...]", MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) {
				fs.BoolP("all", "a", false, "stop all running containers")
				timeFlag(fs)
			},
		},
		{
			Path: []string{"kill"}, Short: "Send a signal to one or more running containers",
			Handler: Containers, Operation: "kill", Args: "CONTAINER [CONTAINER...]", MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) {
				fs.BoolP("all", "a", false, "signal all running containers")
				fs.StringP("signal", "s", "KILL", "signal to send")
			},
		},
		{
			Path: []string{"rm"}, Short: "Remove one or more containers",
			Example: "  rpod rm web\n  rpod rm --force --volumes db",
			Handler: Containers, Operation: "remove", Args: "CONTAINER [CONTAINER...]", MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) {
				fs.BoolP("all", "a", false, "remove all containers")
				forceFlag(fs, "remove running containers")
				fs.BoolP("volumes", "v", false, "remove anonymous volumes too")
				timeFlag(fs)
			},
		},

		// images
		{
			Path: []string{"images"}, Short: "List images",
			Handler: Images, Operation: "list", MaxArgs: 0,
			Flags: imageListFlags,
		},
		{
			Path: []string{"image", "ls"}, Aliases: []string{"list"}, Short: "List images",
			Handler: Images, Operation: "list", MaxArgs: 0,
			Flags: imageListFlags,
		},
		{
			Path: []string{"image", "inspect"}, Short: "Show the configuration of images",
			Handler: Images, Operation: "inspect", Args: "IMAGE [IMAGE...]", MinArgs: 1, MaxArgs: unlimited,
		},
		{
			Path: []string{"rmi"}, Short: "Remove one or more images",
			Handler: Images, Operation: "remove", Args: "IMAGE [IMAGE...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) { forceFlag(fs, "remove images used by containers") },
		},
		{
			Path: []string{"image", "rm"}, Short: "Remove one or more images",
			Handler: Images, Operation: "remove", Args: "IMAGE [IMAGE...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) { forceFlag(fs, "remove images used by containers") },
		},

		// pods
		{
			Path: []string{"pod", "ls"}, Aliases: []string{"list", "ps"}, Short: "List pods",
			Handler: Pods, Operation: "list", MaxArgs: 0,
			Flags: options.AddListFlags,
		},
		{
			Path: []string{"pod", "rm"}, Short: "Remove one or more pods",
			Handler: Pods, Operation: "remove", Args: "POD [POD...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) { forceFlag(fs, "stop and remove running pods") },
		},

		// volumes
		{
			Path: []string{"volume", "ls"}, Aliases: []string{"list"}, Short: "List volumes",
			Handler: Volumes, Operation: "list", MaxArgs: 0,
			Flags: options.AddListFlags,
		},
		{
			Path: []string{"volume", "rm"}, Short: "Remove one or more volumes",
			Handler: Volumes, Operation: "remove", Args: "VOLUME [VOLUME...]", MinArgs: 1, MaxArgs: unlimited,
			Flags: func(fs *pflag.FlagSet) { forceFlag(fs, "remove volumes in use") },
		},

		// system
		{
			Path: []string{"info"}, Short: "Show information about the container host",
			Handler: System, Operation: "info", MaxArgs: 0,
		},
		{
			Path: []string{"ping"}, Short: "Check that the daemon answers",
			Handler: System, Operation: "ping", MaxArgs: 0,
		},
		{
			Path: []string{"version"}, Short: "Show client and server versions",
			Handler: System, Operation: "version", MaxArgs: 0,
		},
	}
}

func containerListFlags(fs *pflag.FlagSet) {
	options.AddListFlags(fs)
	fs.Int(OptLast, 0, "show the n most recently created containers")
	fs.BoolP(OptSize, "s", false, "report container sizes")
	fs.BoolP(OptPod, "p", false, "show the pod each container belongs to")
}

func imageListFlags(fs *pflag.FlagSet) {
	options.AddListFlags(fs)
}

func inspectFlags(fs *pflag.FlagSet) {
	fs.BoolP(OptSize, "s", false, "report container sizes")
}

func forceFlag(fs *pflag.FlagSet, usage string) {
	fs.BoolP("force", "f", false, usage)
}

func timeFlag(fs *pflag.FlagSet) {
	fs.IntP("time", "t", 10, "seconds to wait before killing the container")
}
