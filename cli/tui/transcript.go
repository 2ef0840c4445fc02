package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/screener/transcript"
)

// TranscriptData is the static payload for the transcript view.
type TranscriptData struct {
	Title   string
	Lines   []transcript.Line
	Summary string
}

// LineMsg appends a transcript line.
type LineMsg transcript.Line

// StatusMsg replaces the progress label.
type StatusMsg string

// DoneMsg ends a live view. Err is shown instead of Summary when set.
type DoneMsg struct {
	Summary string
	Err     error
}

// chrome is the number of rows used by the title and footer.
const chrome = 4

// TranscriptModel shows a conversation, either replayed or live.
type TranscriptModel struct {
	title    string
	lines    []transcript.Line
	status   string
	summary  string
	err      error
	live     bool
	done     bool
	quitting bool

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
}

// NewTranscriptModel creates a transcript view. A live view shows a spinner
// until it receives DoneMsg.
func NewTranscriptModel(title string, lines []transcript.Line, live bool) TranscriptModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WarningStyle

	return TranscriptModel{
		title:   title,
		lines:   append([]transcript.Line(nil), lines...),
		live:    live,
		done:    !live,
		spinner: s,
	}
}

// WithSummary sets the footer summary.
func (m TranscriptModel) WithSummary(summary string) TranscriptModel {
	m.summary = summary
	return m
}

// Init implements tea.Model.
func (m TranscriptModel) Init() tea.Cmd {
	if m.live {
		return m.spinner.Tick
	}
	return nil
}

// Update implements tea.Model.
func (m TranscriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chrome, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case LineMsg:
		m.lines = append(m.lines, transcript.Line(msg))
		m.refresh()
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refresh re-renders the transcript into the viewport and follows the tail.
func (m *TranscriptModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderLines(m.lines, m.viewport.Width))
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m TranscriptModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(renderLines(m.lines, 0))
	}
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m TranscriptModel) footer() string {
	switch {
	case m.err != nil:
		return ErrorStyle.Render("✗ "+m.err.Error()) + "  " + HelpStyle.Render("q quit")
	case m.done:
		outcome, _, _ := strings.Cut(m.summary, " ")
		return OutcomeStyle(outcome).Render(m.summary) + "  " + HelpStyle.Render("q quit")
	default:
		status := m.status
		if status == "" {
			status = "waiting for the backend"
		}
		return fmt.Sprintf("%s %s  %s", m.spinner.View(), status, HelpStyle.Render("q stop"))
	}
}

// Lines returns a copy of the displayed lines.
func (m TranscriptModel) Lines() []transcript.Line {
	return append([]transcript.Line(nil), m.lines...)
}

// Done reports whether the view stopped waiting for lines.
func (m TranscriptModel) Done() bool {
	return m.done
}

func renderLines(lines []transcript.Line, width int) string {
	if len(lines) == 0 {
		return HelpStyle.Render("(no lines yet)")
	}

	text := lipgloss.NewStyle()
	if width > 0 {
		text = text.Width(width)
	}

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := l.Speaker
		if speaker == "" {
			speaker = string(l.Side)
		}
		b.WriteString(text.Render(SpeakerStyle(l.Side).Render(speaker+":") + " " + l.Text))
	}
	return b.String()
}

// Live drives a TranscriptModel from another goroutine.
type Live struct {
	program *tea.Program
}

// NewLive creates a live transcript program. Options are passed to Bubble
// Tea; tests use tea.WithInput(nil) and tea.WithoutRenderer().
func NewLive(title string, opts ...tea.ProgramOption) *Live {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Live{program: tea.NewProgram(NewTranscriptModel(title, nil, true), opts...)}
}

// Line appends a line. Blocks until the program accepts it or exits.
func (l *Live) Line(line transcript.Line) { l.program.Send(LineMsg(line)) }

// Status updates the progress label.
func (l *Live) Status(s string) { l.program.Send(StatusMsg(s)) }

// Finish marks the run done; the view stays until the user quits.
func (l *Live) Finish(summary string, err error) {
	l.program.Send(DoneMsg{Summary: summary, Err: err})
}

// Quit stops the program without waiting for the user.
func (l *Live) Quit() { l.program.Quit() }

// Run blocks until the user quits and returns the final model.
func (l *Live) Run() (TranscriptModel, error) {
	final, err := l.program.Run()
	if err != nil {
		return TranscriptModel{}, err
	}
	m, _ := final.(TranscriptModel)
	return m, nil
}
