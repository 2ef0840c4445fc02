package types

// Scorecard is a recorded verdict on a test screening conversation.
// Scorecards are append-only; corrections are new records.
type Scorecard struct {
	ID            string            `json:"id" yaml:"id"`
	VacancyID     string            `json:"vacancy_id" yaml:"vacancy_id"`
	SessionID     string            `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Persona       string            `json:"persona,omitempty" yaml:"persona,omitempty"`
	CandidateName string            `json:"candidate_name,omitempty" yaml:"candidate_name,omitempty"`
	Outcome       SimulationOutcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Rating        int               `json:"rating" yaml:"rating"`
	Notes         string            `json:"notes,omitempty" yaml:"notes,omitempty"`
	Turns         int               `json:"turns" yaml:"turns"`
	CreatedAt     string            `json:"created_at" yaml:"created_at"`
}

// MaxRating is the upper bound of Scorecard.Rating; 0 means unrated.
const MaxRating = 5
