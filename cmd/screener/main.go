// Package main provides the screener CLI entrypoint.
//
// Usage:
//
//	screener [global options] <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: the backend reported an error event
//   - 2: transport failure, incomplete stream or retries exhausted
//   - 3: usage, config or input error
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/cmd"
	"github.com/justapithecus/screener/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// exitUsage is used for errors urfave/cli returns before an action runs,
// such as a missing required flag.
const exitUsage = 3

func main() {
	app := &cli.App{
		Name:                 "screener",
		Usage:                "Recruiter screening backend client and relay",
		Version:              fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:                cmd.GlobalFlags(),
		Commands:             cmd.Commands(commit),
		EnableBashCompletion: true,
		ExitErrHandler:       exitErrHandler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		os.Exit(exitCode(err, os.Stderr))
	}
}

// exitErrHandler exits with the code carried by err.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode prints err to w and returns the process exit code. Messages of
// bare cli.Exit("", n) errors are not printed.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return exitUsage
}
