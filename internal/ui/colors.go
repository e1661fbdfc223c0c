package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy.
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// ConfigureColors sets the color profile for output written to w.
// Color is off when w is not a terminal or NO_COLOR is set; CLICOLOR_FORCE
// turns it back on.
func ConfigureColors(w io.Writer) {
	out := termenv.NewOutput(w)
	profile := out.EnvColorProfile()
	if !IsTerminal(w) && os.Getenv("CLICOLOR_FORCE") == "" {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)
}

// DisableColors switches to monochrome output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// SuccessStyle renders success text.
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorSuccess)
}

// ErrorStyle renders failure text.
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorError)
}

// MutedStyle renders secondary text.
func MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorMuted)
}

// Success formats a success line: "✓ msg".
func Success(msg string) string {
	return SuccessStyle().Render(SymbolSuccess) + " " + msg
}

// Failure formats a failure line: "✗ msg".
func Failure(msg string) string {
	return ErrorStyle().Render(SymbolFail) + " " + msg
}
