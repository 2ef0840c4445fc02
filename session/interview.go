// Package session holds the per-screen state of the interview editor and the
// screening simulator: the server-assigned session ID, the transcript, and
// the in-flight guard.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/retry"
	"github.com/justapithecus/screener/stream"
	"github.com/justapithecus/screener/transcript"
	"github.com/justapithecus/screener/types"
)

// ErrNoSession is returned by Feedback before any generation assigned a session.
var ErrNoSession = errors.New("no interview session: generate an interview first")

// InterviewAPI is the subset of the backend used by Interview.
type InterviewAPI interface {
	GenerateInterview(ctx context.Context, req types.GenerateRequest, h stream.Handler) (*types.InterviewResult, error)
	SubmitFeedback(ctx context.Context, req types.FeedbackRequest, h stream.Handler) (*types.InterviewResult, error)
}

// InterviewConfig configures an Interview.
type InterviewConfig struct {
	VacancyID string
	// SessionID resumes an existing session.
	SessionID  string
	Schedule   retry.Schedule
	OnProgress retry.ProgressFunc
	Logger     *log.Logger
	Metrics    *metrics.Collector
}

// Interview is one interview editing session.
//
// Generation and feedback share a single in-flight guard: while either runs,
// the other is rejected with retry.ErrSubmissionInProgress. Feedback is
// retried per the schedule; generation is attempted once.
type Interview struct {
	api       InterviewAPI
	vacancyID string
	guard     *retry.Guard
	submitter *retry.Submitter
	collector *metrics.Collector

	mu        sync.Mutex
	sessionID string
	folder    *transcript.FeedbackFolder
	base      *log.Logger
	logger    *log.Logger
}

// NewInterview creates an interview session.
func NewInterview(api InterviewAPI, cfg InterviewConfig) *Interview {
	guard := &retry.Guard{}
	s := &Interview{
		api:       api,
		vacancyID: cfg.VacancyID,
		guard:     guard,
		collector: cfg.Metrics,
		folder:    transcript.NewFeedbackFolder(),
		base:      cfg.Logger,
		sessionID: cfg.SessionID,
	}
	s.logger = s.contextLogger(cfg.SessionID)
	s.submitter = retry.NewSubmitter(retry.Config{
		Schedule:   cfg.Schedule,
		OnProgress: cfg.OnProgress,
		Guard:      guard,
		Logger:     s.logger,
		Metrics:    cfg.Metrics,
	})
	return s
}

// SessionID returns the server-assigned session ID, or "".
func (s *Interview) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Transcript returns the current feedback folder.
func (s *Interview) Transcript() *transcript.FeedbackFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}

// InProgress reports whether a generation or feedback submission is in flight.
func (s *Interview) InProgress() bool {
	return s.guard.InProgress()
}

// Generate streams a new interview for the vacancy. onEvent, if set, sees
// every event after it is folded into the transcript.
func (s *Interview) Generate(ctx context.Context, vacancyText string, onEvent stream.Handler) (*types.InterviewResult, error) {
	if !s.guard.TryAcquire() {
		s.collector.IncGuardRejection()
		return nil, retry.ErrSubmissionInProgress
	}
	defer s.guard.Release()

	folder := s.Transcript()
	folder.Begin("")

	req := types.GenerateRequest{
		VacancyID:   s.vacancyID,
		VacancyText: vacancyText,
		SessionID:   s.SessionID(),
	}
	res, err := s.api.GenerateInterview(ctx, req, s.handler(folder, onEvent))
	if err != nil {
		return nil, err
	}
	s.setSessionID(res.SessionID)
	return res, nil
}

// Feedback submits a revision request on the current session, with retries.
func (s *Interview) Feedback(ctx context.Context, message string, onEvent stream.Handler) (*types.InterviewResult, error) {
	sessionID := s.SessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}

	folder := s.Transcript()
	var res *types.InterviewResult
	err := s.submitter.Submit(ctx, func(ctx context.Context, attempt int) error {
		if attempt == 1 {
			folder.Begin(message)
		} else {
			folder.ResetThinking()
		}

		r, err := s.api.SubmitFeedback(ctx, types.FeedbackRequest{
			SessionID: sessionID,
			Message:   message,
		}, s.handler(folder, onEvent))
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.setSessionID(res.SessionID)
	return res, nil
}

// Reset discards the session ID and transcript. Fails while a submission is
// in flight.
func (s *Interview) Reset() error {
	if !s.guard.TryAcquire() {
		return retry.ErrSubmissionInProgress
	}
	defer s.guard.Release()

	s.mu.Lock()
	s.sessionID = ""
	s.folder = transcript.NewFeedbackFolder()
	s.logger = s.contextLogger("")
	s.mu.Unlock()
	return nil
}

func (s *Interview) handler(folder *transcript.FeedbackFolder, onEvent stream.Handler) stream.Handler {
	return func(ev *types.StreamEvent) {
		folder.Apply(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

// setSessionID assigns the session ID once. Later different values are ignored.
func (s *Interview) setSessionID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.sessionID {
	case "":
		s.sessionID = id
		s.logger = s.contextLogger(id)
		s.logger.Info("session assigned", nil)
	case id:
	default:
		s.logger.Warn("ignoring different session id from server", map[string]any{
			"received": id,
		})
	}
}

func (s *Interview) contextLogger(sessionID string) *log.Logger {
	return s.base.With(log.Context{
		Feature:   "interview",
		VacancyID: s.vacancyID,
		SessionID: sessionID,
	})
}
