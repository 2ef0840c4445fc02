package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// View types that support TUI mode.
const (
	ViewTranscript = "transcript"
	ViewStats      = "stats"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	var model tea.Model
	switch viewType {
	case ViewTranscript:
		td, ok := data.(*TranscriptData)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		model = NewTranscriptModel(td.Title, td.Lines, false).WithSummary(td.Summary)
	case ViewStats:
		model = NewStatsModel(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	switch viewType {
	case ViewTranscript, ViewStats:
		return true
	}
	return false
}

// keyMap defines key bindings shared by all views.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}
