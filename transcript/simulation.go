package transcript

import (
	"sync"

	"github.com/justapithecus/screener/types"
)

// DefaultAgentSpeaker and DefaultCandidateSpeaker label lines when the
// stream did not name them.
const (
	DefaultAgentSpeaker     = "Agent"
	DefaultCandidateSpeaker = "Candidate"
)

// QAPair is one agent question with the candidate's answer.
// Either side may be empty when the stream did not alternate.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SimulationFolder accumulates a screening simulation transcript.
type SimulationFolder struct {
	seq *Sequence

	mu      sync.Mutex
	persona string
	name    string
	started bool
	lines   []Line
	result  *types.SimulationResult
}

// NewSimulationFolder creates an empty folder.
func NewSimulationFolder() *SimulationFolder {
	return &SimulationFolder{seq: NewSequence("line")}
}

// Apply folds one event. Returns the transcript line it appended, if any.
func (f *SimulationFolder) Apply(ev *types.StreamEvent) (Line, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Type {
	case types.EventTypeStart:
		var payload types.SimulationStartPayload
		if err := ev.Decode(&payload); err == nil {
			f.persona = payload.Persona
			f.name = payload.DisplayName()
		}
		f.started = true

	case types.EventTypeAgent:
		return f.appendLine(SideAgent, DefaultAgentSpeaker, ev.Text())

	case types.EventTypeCandidate:
		speaker := f.name
		if speaker == "" {
			speaker = DefaultCandidateSpeaker
		}
		return f.appendLine(SideCandidate, speaker, ev.Text())

	case types.EventTypeComplete:
		var payload types.SimulationCompletePayload
		if err := ev.Decode(&payload); err != nil {
			// No result; the caller rebuilds it from the terminal payload.
			return Line{}, false
		}
		turns := payload.TotalTurns
		if turns == 0 {
			turns = f.countSide(SideAgent)
		}
		f.result = &types.SimulationResult{
			Outcome:       payload.Outcome,
			Persona:       f.persona,
			CandidateName: f.name,
			Qualified:     payload.Qualified,
			Summary:       payload.Summary,
			TotalTurns:    turns,
			SessionID:     payload.SessionID,
		}
	}
	return Line{}, false
}

func (f *SimulationFolder) appendLine(side Side, speaker, text string) (Line, bool) {
	if text == "" {
		return Line{}, false
	}
	line := Line{ID: f.seq.Next(), Side: side, Speaker: speaker, Text: text}
	f.lines = append(f.lines, line)
	return line, true
}

func (f *SimulationFolder) countSide(side Side) int {
	n := 0
	for _, l := range f.lines {
		if l.Side == side {
			n++
		}
	}
	return n
}

// Started reports whether a start event has been seen.
func (f *SimulationFolder) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Persona returns the persona type from the start event.
func (f *SimulationFolder) Persona() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persona
}

// PersonaName returns the candidate display name from the start event.
func (f *SimulationFolder) PersonaName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Lines returns a copy of the transcript in arrival order.
func (f *SimulationFolder) Lines() []Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Line(nil), f.lines...)
}

// Pairs zips agent lines with the candidate line that follows each.
func (f *SimulationFolder) Pairs() []QAPair {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pairs []QAPair
	var cur *QAPair
	for _, l := range f.lines {
		switch l.Side {
		case SideAgent:
			if cur != nil {
				pairs = append(pairs, *cur)
			}
			cur = &QAPair{Question: l.Text}
		case SideCandidate:
			if cur == nil {
				cur = &QAPair{}
			}
			if cur.Answer != "" {
				cur.Answer += "\n"
			}
			cur.Answer += l.Text
		}
	}
	if cur != nil {
		pairs = append(pairs, *cur)
	}
	return pairs
}

// Result returns the outcome captured from the complete event, or nil.
func (f *SimulationFolder) Result() *types.SimulationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return nil
	}
	r := *f.result
	return &r
}
