package action

import "github.com/spf13/pflag"

// Definition is a table-driven Action. The CLI builds one cobra command per definition.
type Definition struct {
	// Path is the command path below the root, e.g. []string{"container", "ls"}.
	Path    []string
	Aliases []string
	Short   string
	Example string

	Handler   string
	Operation string

	// Args describes positional arguments for usage text, e.g. "CONTAINER [CONTAINER...]".
	Args    string
	MinArgs int
	MaxArgs int // -1 for unlimited

	// Flags registers extra flags. Nil means none.
	Flags func(fs *pflag.FlagSet)
}

// ConfigureFlags implements Action.
func (d Definition) ConfigureFlags(fs *pflag.FlagSet) {
	if d.Flags != nil {
		d.Flags(fs)
	}
}

// HandlerType implements Action.
func (d Definition) HandlerType() string { return d.Handler }

// OperationName implements Action.
func (d Definition) OperationName() string { return d.Operation }

// Name is the last element of Path.
func (d Definition) Name() string {
	if len(d.Path) == 0 {
		return ""
	}
	return d.Path[len(d.Path)-1]
}
