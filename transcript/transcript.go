// Package transcript folds stream events into chat transcripts.
//
// Two folders exist, one per call site. FeedbackFolder backs the interview
// feedback loop (thinking buffer, progress label, assistant replies).
// SimulationFolder backs screening simulations (persona, alternating
// agent/candidate lines, final outcome). Folders are safe for concurrent use:
// the stream goroutine applies events while a view reads snapshots.
package transcript

import (
	"fmt"
	"sync/atomic"
)

// Side is the conversational side a line belongs to.
type Side string

const (
	SideUser      Side = "user"
	SideAssistant Side = "assistant"
	SideAgent     Side = "agent"
	SideCandidate Side = "candidate"
)

// Line is one transcript entry.
type Line struct {
	ID      string `json:"id"`
	Side    Side   `json:"side"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// Sequence issues monotonically increasing IDs ("prefix-1", "prefix-2", ...).
// Each folder owns its own; there is no process-wide counter.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a sequence with the given ID prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next ID.
func (s *Sequence) Next() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
