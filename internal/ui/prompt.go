package ui

import (
	"os"

	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question. It returns def without asking when stdin
// is not a terminal.
func Confirm(title, description string, def bool) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return def, nil
	}

	confirm := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirm, nil
}
