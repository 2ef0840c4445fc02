package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/backend"
	"github.com/justapithecus/screener/retry"
	"github.com/justapithecus/screener/scorecard"
	"github.com/justapithecus/screener/session"
	"github.com/justapithecus/screener/stream"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitServerError = 1 // the backend sent an error event
	exitTransport   = 2 // transport failure, incomplete stream, retries exhausted
	exitUsage       = 3 // bad flags, config or input
)

// ExitCode maps an operation error onto the CLI exit codes.
func ExitCode(err error) int {
	var exitCoder cli.ExitCoder
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &exitCoder):
		return exitCoder.ExitCode()
	case stream.IsStreamError(err):
		return exitServerError
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, scorecard.ErrInvalid),
		errors.Is(err, backend.ErrInvalidRequest):
		return exitUsage
	default:
		return exitTransport
	}
}

// exitError wraps err in a cli.Exit carrying its mapped code. A server
// error event keeps the server's message verbatim.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return err
	}

	msg := err.Error()
	var se *stream.StreamError
	if errors.As(err, &se) {
		msg = se.Message
	}
	var ee *retry.ExhaustedError
	if errors.As(err, &ee) {
		msg = ee.Message
	}
	return cli.Exit(msg, ExitCode(err))
}
