// Package retry wraps a single logical submission with bounded retries and a
// re-entrancy guard.
//
// The guard is acquired synchronously by the caller's goroutine before any
// attempt starts, and is released only after the last attempt resolves. A
// second submission while one is in flight is rejected with
// ErrSubmissionInProgress rather than queued.
package retry

import (
	"errors"
	"sync/atomic"
)

// ErrSubmissionInProgress is returned when a submission is already in flight.
var ErrSubmissionInProgress = errors.New("submission already in progress")

// Guard is a single-permit in-progress flag. The zero value is ready to use.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire sets the flag if it was clear and reports whether it did.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release clears the flag.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// InProgress reports whether a submission currently holds the guard.
func (g *Guard) InProgress() bool {
	return g.busy.Load()
}
