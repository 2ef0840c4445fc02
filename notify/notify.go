// Package notify defines the boundary for publishing screening notifications
// to downstream systems (webhooks, Redis pub/sub).
//
// Notifications are best-effort: a failed publish is logged by the caller and
// never fails the operation that triggered it.
package notify

import (
	"context"
	"time"

	"github.com/justapithecus/screener/types"
)

// Event types.
const (
	EventSessionCompleted = "session_completed"
	EventScorecardSaved   = "scorecard_saved"
)

// SessionCompletedEvent is the payload published when a simulation finishes
// or a scorecard is saved.
type SessionCompletedEvent struct {
	Version       string                  `json:"version"`
	EventType     string                  `json:"event_type"`
	VacancyID     string                  `json:"vacancy_id"`
	SessionID     string                  `json:"session_id,omitempty"`
	Persona       string                  `json:"persona,omitempty"`
	CandidateName string                  `json:"candidate_name,omitempty"`
	Outcome       types.SimulationOutcome `json:"outcome,omitempty"`
	Qualified     *bool                   `json:"qualified,omitempty"`
	TotalTurns    int                     `json:"total_turns,omitempty"`
	ScorecardID   string                  `json:"scorecard_id,omitempty"`
	Rating        int                     `json:"rating,omitempty"`
	Timestamp     string                  `json:"timestamp"` // RFC 3339
	DurationMs    int64                   `json:"duration_ms,omitempty"`
}

// FromSimulation builds a session_completed event.
func FromSimulation(vacancyID string, res *types.SimulationResult, duration time.Duration, now time.Time) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		Version:       types.Version,
		EventType:     EventSessionCompleted,
		VacancyID:     vacancyID,
		SessionID:     res.SessionID,
		Persona:       res.Persona,
		CandidateName: res.CandidateName,
		Outcome:       res.Outcome,
		Qualified:     res.Qualified,
		TotalTurns:    res.TotalTurns,
		Timestamp:     now.UTC().Format(time.RFC3339),
		DurationMs:    duration.Milliseconds(),
	}
}

// FromScorecard builds a scorecard_saved event.
func FromScorecard(sc *types.Scorecard, now time.Time) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		Version:       types.Version,
		EventType:     EventScorecardSaved,
		VacancyID:     sc.VacancyID,
		SessionID:     sc.SessionID,
		Persona:       sc.Persona,
		CandidateName: sc.CandidateName,
		Outcome:       sc.Outcome,
		TotalTurns:    sc.Turns,
		ScorecardID:   sc.ID,
		Rating:        sc.Rating,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
}

// Notifier publishes events to a downstream system.
type Notifier interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}
