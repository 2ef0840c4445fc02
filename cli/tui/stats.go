package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/screener/metrics"
)

// StatsModel is a Bubble Tea model for the metrics snapshot view.
type StatsModel struct {
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(data any) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render() + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}

func (m StatsModel) render() string {
	var snap metrics.Snapshot
	switch d := m.data.(type) {
	case metrics.Snapshot:
		snap = d
	case *metrics.Snapshot:
		snap = *d
	default:
		return "Invalid data type for stats"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stream Statistics"))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Started", snap.StreamsStarted, highlightColor),
		renderStatBox("Completed", snap.StreamsCompleted, successColor),
		renderStatBox("Incomplete", snap.StreamsIncomplete, warningColor),
		renderStatBox("Server errors", snap.StreamServerErrors, errorColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Submissions", snap.Submissions, highlightColor),
		renderStatBox("Retries", snap.Retries, warningColor),
		renderStatBox("Exhausted", snap.RetriesExhausted, errorColor),
		renderStatBox("Rejected", snap.GuardRejections, mutedColor),
	))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Events", fmt.Sprintf("%d", snap.EventsReceived)},
		{"Malformed", fmt.Sprintf("%d", snap.MalformedSkipped)},
		{"Canceled", fmt.Sprintf("%d", snap.StreamsCanceled)},
		{"Transport", fmt.Sprintf("%d", snap.TransportFailures)},
	}
	types := make([]string, 0, len(snap.EventsByType))
	for t := range snap.EventsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, [2]string{"  " + t, fmt.Sprintf("%d", snap.EventsByType[t])})
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}
	return b.String()
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RenderStatsStatic renders stats without the full TUI (for --stats output
// on a terminal).
func RenderStatsStatic(data any) string {
	model := NewStatsModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.render())
}
