package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/stream"
)

// DefaultFailureMessage is surfaced once every attempt has failed.
const DefaultFailureMessage = "Failed to process your feedback. Please try again."

// Phase is the user-facing state of a submission.
type Phase string

const (
	// PhaseProcessing covers the first attempt and the silent first retry.
	PhaseProcessing Phase = "processing"
	// PhaseRetrying is shown from the second retry on.
	PhaseRetrying Phase = "retrying"
	// PhaseFailed is emitted once, after exhaustion.
	PhaseFailed Phase = "failed"
)

// Progress is one progress notification.
type Progress struct {
	Phase       Phase
	Attempt     int
	MaxAttempts int
	Message     string
}

// ProgressFunc receives progress notifications on the submitting goroutine.
type ProgressFunc func(Progress)

// Op is one attempt of the wrapped operation. attempt is 1-based.
type Op func(ctx context.Context, attempt int) error

// ExhaustedError is returned after every attempt failed.
type ExhaustedError struct {
	Attempts int
	// Message is the single user-facing failure message.
	Message string
	// Err is the last attempt's error.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s (after %d attempts: %v)", e.Message, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted returns true if err is an ExhaustedError.
func IsExhausted(err error) bool {
	var exErr *ExhaustedError
	return errors.As(err, &exErr)
}

// permanent is implemented by errors that retrying cannot fix.
type permanent interface {
	Permanent() bool
}

// DefaultRetryable retries everything except context cancellation and server
// error events. Any transport failure is retried, whatever its status.
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if stream.IsTransportError(err) {
		return true
	}
	var p permanent
	if errors.As(err, &p) && p.Permanent() {
		return false
	}
	return true
}

// Config configures a Submitter.
type Config struct {
	Schedule   Schedule
	OnProgress ProgressFunc
	// FailureMessage replaces DefaultFailureMessage.
	FailureMessage string
	// Retryable classifies errors; DefaultRetryable when nil.
	Retryable func(error) bool
	// Guard is shared with other operations on the same conversation.
	// A private guard is used when nil.
	Guard   *Guard
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Submitter runs guarded, retried submissions. One Submitter serves one
// conversation; concurrent submissions on it are rejected.
type Submitter struct {
	guard      *Guard
	schedule   Schedule
	onProgress ProgressFunc
	failureMsg string
	retryable  func(error) bool
	logger     *log.Logger
	collector  *metrics.Collector
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSubmitter creates a Submitter.
func NewSubmitter(cfg Config) *Submitter {
	s := &Submitter{
		guard:      cfg.Guard,
		schedule:   cfg.Schedule.normalized(),
		onProgress: cfg.OnProgress,
		failureMsg: cfg.FailureMessage,
		retryable:  cfg.Retryable,
		logger:     cfg.Logger,
		collector:  cfg.Metrics,
		sleep:      sleepContext,
	}
	if s.failureMsg == "" {
		s.failureMsg = DefaultFailureMessage
	}
	if s.retryable == nil {
		s.retryable = DefaultRetryable
	}
	if s.guard == nil {
		s.guard = &Guard{}
	}
	return s
}

// InProgress reports whether a submission is in flight.
func (s *Submitter) InProgress() bool {
	return s.guard.InProgress()
}

// Submit runs op with retries on the calling goroutine.
// Returns ErrSubmissionInProgress without calling op when another submission
// holds the guard.
func (s *Submitter) Submit(ctx context.Context, op Op) error {
	if !s.guard.TryAcquire() {
		s.collector.IncGuardRejection()
		return ErrSubmissionInProgress
	}
	defer s.guard.Release()
	return s.run(ctx, op)
}

// Start acquires the guard on the calling goroutine, then runs op with retries
// on a new goroutine. The channel receives exactly one value and is closed.
// The guard is already held when Start returns, so a second Start issued
// immediately after is rejected.
func (s *Submitter) Start(ctx context.Context, op Op) (<-chan error, error) {
	if !s.guard.TryAcquire() {
		s.collector.IncGuardRejection()
		return nil, ErrSubmissionInProgress
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer s.guard.Release()
		done <- s.run(ctx, op)
	}()
	return done, nil
}

func (s *Submitter) run(ctx context.Context, op Op) error {
	s.collector.IncSubmission()
	maxAttempts := s.schedule.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.schedule.Delay(attempt - 1)
			s.logger.Debug("retrying submission", map[string]any{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    lastErr.Error(),
			})
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
			s.collector.IncRetry()
		}

		s.progress(attempt)

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !s.retryable(err) {
			return err
		}
	}

	s.collector.IncRetriesExhausted()
	s.logger.Warn("submission failed after retries", map[string]any{
		"attempts": maxAttempts,
		"error":    lastErr.Error(),
	})
	s.emit(Progress{
		Phase:       PhaseFailed,
		Attempt:     maxAttempts,
		MaxAttempts: maxAttempts,
		Message:     s.failureMsg,
	})
	return &ExhaustedError{Attempts: maxAttempts, Message: s.failureMsg, Err: lastErr}
}

// progress emits the label for an attempt. The first retry stays
// "processing" so a single transient failure is invisible.
func (s *Submitter) progress(attempt int) {
	p := Progress{
		Phase:       PhaseProcessing,
		Attempt:     attempt,
		MaxAttempts: s.schedule.MaxAttempts,
		Message:     "Processing...",
	}
	if attempt > 2 {
		p.Phase = PhaseRetrying
		p.Message = fmt.Sprintf("Retrying (%d/%d)...", attempt, s.schedule.MaxAttempts)
	}
	s.emit(p)
}

func (s *Submitter) emit(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
