package types

// VacancyStatus is the lifecycle state of a vacancy.
type VacancyStatus string

// Vacancy states exposed by the backend.
const (
	VacancyStatusNew             VacancyStatus = "new"
	VacancyStatusInProgress      VacancyStatus = "in_progress"
	VacancyStatusAgentCreated    VacancyStatus = "agent_created"
	VacancyStatusScreeningActive VacancyStatus = "screening_active"
	VacancyStatusArchived        VacancyStatus = "archived"
)

// Vacancy is a vacancy summary as returned by GET /vacancies.
type Vacancy struct {
	ID             string        `json:"id" yaml:"id"`
	Title          string        `json:"title" yaml:"title"`
	Company        string        `json:"company" yaml:"company"`
	Location       string        `json:"location,omitempty" yaml:"location,omitempty"`
	Status         VacancyStatus `json:"status" yaml:"status"`
	Source         string        `json:"source,omitempty" yaml:"source,omitempty"`
	CandidateCount int           `json:"candidates_count" yaml:"candidates_count"`
	CreatedAt      string        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Description    string        `json:"description,omitempty" yaml:"description,omitempty" table:"-"`
}

// VacancyPatch is the body of PATCH /vacancies/{id}. Nil fields are left unchanged.
type VacancyPatch struct {
	Title       *string        `json:"title,omitempty"`
	Status      *VacancyStatus `json:"status,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Description *string        `json:"description,omitempty"`
}

// IsEmpty returns true if the patch changes nothing.
func (p VacancyPatch) IsEmpty() bool {
	return p.Title == nil && p.Status == nil && p.Location == nil && p.Description == nil
}

// VacancyQuery holds the optional query parameters of GET /vacancies.
type VacancyQuery struct {
	Status VacancyStatus
	Source string
	Search string
	Limit  int
	Offset int
}

// VacancyPage is the envelope form of the vacancy list response.
type VacancyPage struct {
	Items []Vacancy `json:"items"`
	Total int       `json:"total"`
}
