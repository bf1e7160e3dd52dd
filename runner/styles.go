package runner

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rlch/spar/model"
)

// Styles holds the TUI look.
type Styles struct {
	Bold     lipgloss.Style
	Dim      lipgloss.Style
	Muted    lipgloss.Style
	Title    lipgloss.Style
	Path     lipgloss.Style
	TestName lipgloss.Style
	Cursor   lipgloss.Style
	Running  lipgloss.Style
	Pass     lipgloss.Style
	Fail     lipgloss.Style
	Skip     lipgloss.Style
	Error    lipgloss.Style
	Detail   lipgloss.Style
	Help     lipgloss.Style

	ProgressFilled lipgloss.Style
	ProgressEmpty  lipgloss.Style

	SymbolPass    string
	SymbolFail    string
	SymbolSkip    string
	SymbolPending string
}

// DefaultStyles returns the default palette.
func DefaultStyles() *Styles {
	return &Styles{
		Bold:  lipgloss.NewStyle().Bold(true),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#9B9B9B")),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		Path:     lipgloss.NewStyle().Foreground(lipgloss.Color("#9B9B9B")).Underline(true),
		TestName: lipgloss.NewStyle().Foreground(lipgloss.Color("#DDDDDD")),
		Cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true),
		Running: lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")),
		Pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4D")).Bold(true),
		Skip:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E0C341")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4D4D")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 0),

		ProgressFilled: lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		ProgressEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3C3C3C")),

		SymbolPass:    "✓",
		SymbolFail:    "✗",
		SymbolSkip:    "○",
		SymbolPending: "⋯",
	}
}

// Status returns the style for a test status.
func (s *Styles) Status(status model.TestStatus) lipgloss.Style {
	switch status {
	case model.StatusRunning:
		return s.Running
	case model.StatusSuccess:
		return s.Pass
	case model.StatusFailure:
		return s.Fail
	case model.StatusIgnored:
		return s.Skip
	default:
		return s.Dim
	}
}

// SpinnerFrames returns the frames used for running tests.
func SpinnerFrames() []string {
	return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
}

// ProgressChars returns the filled and empty progress bar cells.
func ProgressChars() (string, string) {
	return "█", "░"
}
