package types

import (
	"encoding/json"
	"errors"
)

// EventType is the discriminant of a server-pushed stream event.
type EventType string

// Event types seen across the streaming endpoints. The exact subset depends
// on the endpoint: interview generation/feedback emit status, thinking and
// the terminals; screening chat emits start, agent, candidate and the terminals.
const (
	EventTypeStatus    EventType = "status"
	EventTypeThinking  EventType = "thinking"
	EventTypeAgent     EventType = "agent"
	EventTypeCandidate EventType = "candidate"
	EventTypeStart     EventType = "start"
	EventTypeComplete  EventType = "complete"
	EventTypeError     EventType = "error"
)

// IsTerminal returns true if this event type ends a stream.
func (e EventType) IsTerminal() bool {
	return e == EventTypeComplete || e == EventTypeError
}

// IsKnown returns true for the event types listed above.
func (e EventType) IsKnown() bool {
	switch e {
	case EventTypeStatus, EventTypeThinking, EventTypeAgent, EventTypeCandidate,
		EventTypeStart, EventTypeComplete, EventTypeError:
		return true
	}
	return false
}

// ErrNoPayload is returned by StreamEvent.Decode when the event carries no raw payload.
var ErrNoPayload = errors.New("stream event has no payload")

// StreamEvent is one decoded `data:` record.
//
// The common text fields are lifted out of the payload; anything type-specific
// is decoded on demand from Raw.
type StreamEvent struct {
	// Type is the event discriminator.
	Type EventType `json:"type"`
	// Message is free-text progress, a chat line, or an error message.
	Message string `json:"message,omitempty"`
	// Content is a partial text chunk (thinking events).
	Content string `json:"content,omitempty"`
	// Raw is the complete JSON payload as received.
	Raw json.RawMessage `json:"-"`
}

// Text returns Content when present, otherwise Message.
// Backends differ in which of the two they fill for text-carrying events.
func (e *StreamEvent) Text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Message
}

// Decode unmarshals the raw payload into v.
func (e *StreamEvent) Decode(v any) error {
	if len(e.Raw) == 0 {
		return ErrNoPayload
	}
	return json.Unmarshal(e.Raw, v)
}

// InterviewCompletePayload is the terminal payload of interview generation and feedback.
type InterviewCompletePayload struct {
	Interview *Interview `json:"interview,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// SimulationStartPayload opens a screening simulation.
type SimulationStartPayload struct {
	Persona       string `json:"persona"`
	CandidateName string `json:"candidate_name,omitempty"`
	Name          string `json:"name,omitempty"`
}

// DisplayName returns the name the transcript labels candidate lines with.
func (p SimulationStartPayload) DisplayName() string {
	if p.CandidateName != "" {
		return p.CandidateName
	}
	return p.Name
}

// SimulationCompletePayload is the terminal payload of a screening simulation.
type SimulationCompletePayload struct {
	Outcome    SimulationOutcome `json:"outcome"`
	Qualified  *bool             `json:"qualified,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	TotalTurns int               `json:"total_turns,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Message    string            `json:"message,omitempty"`
}
