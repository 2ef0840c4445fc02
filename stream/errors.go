package stream

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultStreamErrorMessage is used when an error event carries no message.
const DefaultStreamErrorMessage = "stream failed"

// StreamError is a server-reported failure: the stream ended with an error event.
// It is a semantic failure and is never retried.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Permanent reports that retrying will not change the outcome.
func (e *StreamError) Permanent() bool { return true }

// IncompleteStreamError indicates the stream ended (EOF, [DONE], or a read
// failure) before any terminal event arrived.
type IncompleteStreamError struct {
	// Reason is a short description: "eof", "done without terminal", "read failed", ...
	Reason string
	// Events is the number of events delivered before the stream ended.
	Events int
	Err    error
}

func (e *IncompleteStreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream ended without terminal event (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("stream ended without terminal event (%s)", e.Reason)
}

func (e *IncompleteStreamError) Unwrap() error {
	return e.Err
}

// TransportError indicates the request failed before any event was read:
// a connection failure, or a non-2xx response.
type TransportError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	// Message is the server-supplied detail for non-2xx responses.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	default:
		return "request failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Permanent reports whether the response status makes a retry pointless.
// 4xx responses are permanent except 408 and 429; connection failures and
// 5xx responses are not.
func (e *TransportError) Permanent() bool {
	if e.StatusCode < 400 || e.StatusCode >= 500 {
		return false
	}
	return e.StatusCode != http.StatusRequestTimeout && e.StatusCode != http.StatusTooManyRequests
}

// CanceledError indicates the caller abandoned the stream. The result is absent,
// and callers should not surface it as a failure.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("stream canceled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if err is a server-reported stream failure.
func IsStreamError(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr)
}

// IsIncomplete returns true if err is an incomplete stream.
func IsIncomplete(err error) bool {
	var incErr *IncompleteStreamError
	return errors.As(err, &incErr)
}

// IsTransportError returns true if err is a transport failure.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsCanceled returns true if err is due to the caller canceling the stream.
func IsCanceled(err error) bool {
	var cErr *CanceledError
	return errors.As(err, &cErr)
}
