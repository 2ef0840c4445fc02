package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/transcript"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewTranscript, true},
		{ViewStats, true},
		{"vacancies", false},
		{"scorecards", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("vacancies", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func TestRun_WrongTranscriptData(t *testing.T) {
	if err := Run(ViewTranscript, "not transcript data"); err == nil {
		t.Error("expected error for wrong data type")
	}
}

func update(t *testing.T, m TranscriptModel, msg tea.Msg) TranscriptModel {
	t.Helper()
	next, _ := m.Update(msg)
	tm, ok := next.(TranscriptModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return tm
}

func TestTranscriptModel_LiveFlow(t *testing.T) {
	m := NewTranscriptModel("Simulation", nil, true)
	if m.Init() == nil {
		t.Error("live model should start the spinner")
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	m = update(t, m, StatusMsg("Agent is typing"))
	m = update(t, m, LineMsg{ID: "line-1", Side: transcript.SideAgent, Speaker: "Agent", Text: "Are you available on weekends?"})
	m = update(t, m, LineMsg{ID: "line-2", Side: transcript.SideCandidate, Speaker: "Jan", Text: "Yes."})

	view := m.View()
	for _, want := range []string{"Simulation", "Are you available on weekends?", "Jan:", "Agent is typing"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.Done() {
		t.Error("model should not be done before DoneMsg")
	}

	m = update(t, m, DoneMsg{Summary: "completed after 1 turn"})
	if !m.Done() {
		t.Error("model should be done after DoneMsg")
	}
	if !strings.Contains(m.View(), "completed after 1 turn") {
		t.Errorf("view missing summary:\n%s", m.View())
	}
	if got := len(m.Lines()); got != 2 {
		t.Errorf("Lines() = %d, want 2", got)
	}
}

func TestTranscriptModel_Error(t *testing.T) {
	m := NewTranscriptModel("Simulation", nil, true)
	m = update(t, m, DoneMsg{Err: errors.New("stream failed")})

	if !strings.Contains(m.View(), "stream failed") {
		t.Errorf("view missing error:\n%s", m.View())
	}
}

func TestTranscriptModel_Quit(t *testing.T) {
	m := NewTranscriptModel("Replay", []transcript.Line{{Side: transcript.SideUser, Text: "hi"}}, false)
	if m.Init() != nil {
		t.Error("static model should not start a spinner")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.View() != "" {
		t.Errorf("quitting view should be empty, got %q", next.View())
	}
}

func TestStatsModel_View(t *testing.T) {
	c := metrics.NewCollector("simulate", "http://localhost:8080", "memory")
	c.IncStreamStarted()
	c.IncStreamCompleted()
	c.IncEventReceived("agent")
	c.IncEventReceived("candidate")

	out := RenderStatsStatic(c.Snapshot())
	for _, want := range []string{"Stream Statistics", "Completed", "agent", "candidate"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats view missing %q:\n%s", want, out)
		}
	}

	if got := NewStatsModel("bogus").View(); !strings.Contains(got, "Invalid data type") {
		t.Errorf("expected invalid data message, got %q", got)
	}
}
