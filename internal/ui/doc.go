// Package ui provides terminal output components for rpod's CLI.
//
// The package includes table rendering, a connection spinner, confirmation
// prompts, and styled status text using the Lip Gloss library.
//
// # Components Overview
//
//	RenderTable     - Column-fitted tables over Bubbles' table view
//	WithSpinner     - Bubble Tea spinner shown while work runs
//	Confirm         - Yes/no prompt using Huh forms
//	ConfigureColors - Picks a termenv color profile for an output
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings
//	ColorInfo      (cyan)   - Informational messages
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - In-progress indicators
//
// Output that is not a terminal, or any output when NO_COLOR is set, is
// rendered without color.
//
// # Spinner Usage
//
//	err := ui.WithSpinner(os.Stderr, "Connecting to devbox", func() error {
//		_, err := cache.Get(ctx)
//		return err
//	})
//
// The spinner only animates when the writer is a terminal. On success it
// clears itself; on failure it leaves a "✗ label" line.
package ui
