package transcript

import (
	"strings"
	"sync"

	"github.com/justapithecus/screener/types"
)

// FeedbackFolder accumulates the interview feedback conversation.
type FeedbackFolder struct {
	seq *Sequence

	mu        sync.Mutex
	thinking  strings.Builder
	status    string
	lastError string
	messages  []Line
	interview *types.Interview
	sessionID string
}

// NewFeedbackFolder creates an empty folder.
func NewFeedbackFolder() *FeedbackFolder {
	return &FeedbackFolder{seq: NewSequence("msg")}
}

// Begin starts a new submission: the user's message is appended and the
// thinking buffer, status and last error are cleared.
// An empty message (initial generation) appends nothing.
func (f *FeedbackFolder) Begin(userMessage string) (Line, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.thinking.Reset()
	f.status = ""
	f.lastError = ""

	if userMessage == "" {
		return Line{}, false
	}
	line := Line{ID: f.seq.Next(), Side: SideUser, Text: userMessage}
	f.messages = append(f.messages, line)
	return line, true
}

// ResetThinking clears the thinking buffer. Called before each retry attempt
// so text from a failed attempt is not concatenated with the next.
func (f *FeedbackFolder) ResetThinking() {
	f.mu.Lock()
	f.thinking.Reset()
	f.mu.Unlock()
}

// Apply folds one event. Returns the assistant line appended by a complete
// event, if any. Unrecognized types are ignored.
func (f *FeedbackFolder) Apply(ev *types.StreamEvent) (Line, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Type {
	case types.EventTypeStatus:
		f.status = ev.Text()

	case types.EventTypeThinking:
		f.thinking.WriteString(ev.Text())

	case types.EventTypeError:
		f.status = ""
		f.lastError = ev.Message

	case types.EventTypeComplete:
		f.status = ""
		var payload types.InterviewCompletePayload
		if err := ev.Decode(&payload); err != nil {
			payload.Message = ev.Message
		}
		if payload.Interview != nil {
			f.interview = payload.Interview
		}
		if payload.SessionID != "" && f.sessionID == "" {
			f.sessionID = payload.SessionID
		}
		if payload.Message == "" {
			return Line{}, false
		}
		line := Line{ID: f.seq.Next(), Side: SideAssistant, Text: payload.Message}
		f.messages = append(f.messages, line)
		return line, true
	}
	return Line{}, false
}

// Thinking returns the running thinking text of the current submission.
func (f *FeedbackFolder) Thinking() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.thinking.String()
}

// Status returns the latest progress label.
func (f *FeedbackFolder) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// LastError returns the message of the most recent error event.
func (f *FeedbackFolder) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// Messages returns a copy of the chat lines.
func (f *FeedbackFolder) Messages() []Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Line(nil), f.messages...)
}

// Interview returns the latest interview received, or nil.
func (f *FeedbackFolder) Interview() *types.Interview {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interview
}

// SessionID returns the first session ID seen in a complete event.
func (f *FeedbackFolder) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}
