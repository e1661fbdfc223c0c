package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames defines the animation frames (◐ ◓ ◑ ◒).
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10, // 100ms per frame
}

// SpinnerState represents the state of a spinner.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
)

// SpinnerComponent is a Bubble Tea spinner with a label and a final state.
type SpinnerComponent struct {
	spinner   spinner.Model
	Label     string
	State     SpinnerState
	StartTime time.Time
}

// NewSpinnerComponent creates a new spinner component with the given label.
func NewSpinnerComponent(label string) SpinnerComponent {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	return SpinnerComponent{
		spinner: sp,
		Label:   label,
		State:   SpinnerPending,
	}
}

// Update handles spinner animation messages.
func (s SpinnerComponent) Update(msg tea.Msg) (SpinnerComponent, tea.Cmd) {
	if s.State != SpinnerInProgress {
		return s, nil
	}

	if tickMsg, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(tickMsg)
		return s, cmd
	}
	return s, nil
}

// View renders the spinner in its current state.
func (s SpinnerComponent) View() string {
	switch s.State {
	case SpinnerInProgress:
		return s.spinner.View() + " " + s.Label + "..."
	case SpinnerSuccess:
		return s.viewFinal(SymbolComplete, ColorSuccess)
	case SpinnerFailed:
		return s.viewFinal(SymbolFail, ColorError)
	default:
		return s.viewFinal(SymbolPending, ColorMuted)
	}
}

func (s SpinnerComponent) viewFinal(symbol string, color lipgloss.Color) string {
	symbolStyle := lipgloss.NewStyle().Foreground(color)
	timing := MutedStyle().Render(formatDuration(s.Elapsed()))
	return symbolStyle.Render(symbol) + " " + s.Label + " " + timing
}

// Start transitions the spinner to in-progress state.
func (s *SpinnerComponent) Start() tea.Cmd {
	s.State = SpinnerInProgress
	s.StartTime = time.Now()
	return s.spinner.Tick
}

// Success transitions the spinner to success state.
func (s *SpinnerComponent) Success() {
	s.State = SpinnerSuccess
}

// Fail transitions the spinner to failed state.
func (s *SpinnerComponent) Fail() {
	s.State = SpinnerFailed
}

// Elapsed returns the duration since the spinner started.
func (s SpinnerComponent) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

// spinnerDoneMsg ends a spinner program.
type spinnerDoneMsg struct{ err error }

// spinnerModel shows one spinner until the work finishes. A successful run
// leaves no trace on screen; a failure leaves the failed line.
type spinnerModel struct {
	spin SpinnerComponent
	done bool
	tick tea.Cmd
}

func (m spinnerModel) Init() tea.Cmd {
	return m.tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(spinnerDoneMsg); ok {
		m.done = true
		if done.err != nil {
			m.spin.Fail()
		} else {
			m.spin.Success()
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	if m.done {
		if m.spin.State == SpinnerFailed {
			return m.spin.View() + "\n"
		}
		return ""
	}
	return m.spin.View()
}

func newSpinnerModel(label string) spinnerModel {
	comp := NewSpinnerComponent(label)
	tick := comp.Start()
	return spinnerModel{spin: comp, tick: tick}
}

// WithSpinner runs fn while a spinner labelled label animates on w.
// When w is not a terminal fn just runs.
func WithSpinner(w io.Writer, label string, fn func() error) error {
	if !IsTerminal(w) {
		return fn()
	}

	p := tea.NewProgram(newSpinnerModel(label),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	errCh := make(chan error, 1)
	go func() {
		err := fn()
		errCh <- err
		p.Send(spinnerDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		fnErr := <-errCh
		if fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("spinner: %w", err)
	}
	return <-errCh
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
