package types

// SimulationOutcome classifies how a screening simulation ended.
type SimulationOutcome string

// Simulation outcomes reported by the terminal complete event.
const (
	OutcomeCompleted       SimulationOutcome = "completed"
	OutcomeMaxTurnsReached SimulationOutcome = "max_turns_reached"
)

// ScreeningChatRequest is the body of POST /screening/chat.
type ScreeningChatRequest struct {
	VacancyID string `json:"vacancy_id"`
	Persona   string `json:"persona,omitempty"`
	MaxTurns  int    `json:"max_turns,omitempty"`
	Simulate  bool   `json:"simulate"`
}

// SimulationResult is the aggregated result of a screening simulation.
type SimulationResult struct {
	Outcome       SimulationOutcome `json:"outcome"`
	Persona       string            `json:"persona"`
	CandidateName string            `json:"candidate_name,omitempty"`
	Qualified     *bool             `json:"qualified,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	TotalTurns    int               `json:"total_turns"`
	SessionID     string            `json:"session_id,omitempty"`
}
