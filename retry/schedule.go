package retry

import "time"

// Default schedule: three attempts, the first retry near-immediate, then
// exponential from one second.
const (
	DefaultMaxAttempts = 3
	DefaultFirstDelay  = 200 * time.Millisecond
	DefaultBaseDelay   = time.Second
)

// Schedule is a bounded backoff schedule.
type Schedule struct {
	// MaxAttempts is the total number of attempts, first included.
	MaxAttempts int
	// FirstDelay precedes the first retry. It is short enough that a one-off
	// blip goes unnoticed.
	FirstDelay time.Duration
	// BaseDelay precedes the second retry and doubles for each retry after.
	BaseDelay time.Duration
}

// DefaultSchedule returns 3 attempts with delays 200ms, 1s (then 2s, 4s, ...).
func DefaultSchedule() Schedule {
	return Schedule{
		MaxAttempts: DefaultMaxAttempts,
		FirstDelay:  DefaultFirstDelay,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Delay returns the wait before the given retry (1 = the first retry).
func (s Schedule) Delay(retry int) time.Duration {
	if retry <= 1 {
		return s.FirstDelay
	}
	return s.BaseDelay << uint(retry-2)
}

// normalized fills zero fields from the default schedule.
func (s Schedule) normalized() Schedule {
	d := DefaultSchedule()
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.FirstDelay < 0 {
		s.FirstDelay = 0
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = d.BaseDelay
	}
	return s
}
