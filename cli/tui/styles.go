// Package tui provides Bubble Tea views for the screener CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI shows the same data as non-TUI rendering
//   - No TUI-exclusive data allowed
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/screener/transcript"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)

	speakerStyles = map[transcript.Side]lipgloss.Style{
		transcript.SideAgent:     lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		transcript.SideCandidate: lipgloss.NewStyle().Bold(true).Foreground(highlightColor),
		transcript.SideUser:      lipgloss.NewStyle().Bold(true).Foreground(highlightColor),
		transcript.SideAssistant: lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
	}
)

// OutcomeStyle returns a style for a simulation outcome or stream state.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "completed", "qualified":
		return SuccessStyle
	case "max_turns_reached", "running", "canceled":
		return WarningStyle
	case "failed", "error", "not_qualified":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// SpeakerStyle returns the label style for a transcript side.
func SpeakerStyle(side transcript.Side) lipgloss.Style {
	if s, ok := speakerStyles[side]; ok {
		return s
	}
	return ValueStyle
}
