// Package cmd provides CLI commands for the screener binary.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode for simulate and replay.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (simulate, replay only)",
	}
)

// OutputFlags returns the shared flags for commands that render results.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// GlobalFlags returns the app-level flags shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to screener.yaml",
			EnvVars: []string{"SCREENER_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend-url",
			Usage: "Backend origin (default: $NEXT_PUBLIC_BACKEND_URL, $SCREENER_BACKEND_URL, config, http://localhost:8080)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for plain calls and for stream response headers",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			Value:   "warn",
			EnvVars: []string{"SCREENER_LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "Print stream counters to stderr on exit",
		},
		&cli.StringFlag{
			Name:  "record",
			Usage: "Record every received stream event to this file (msgpack frames)",
		},
	}
}

// defaultTimeout is used when neither flag nor config set one.
const defaultTimeout = 30 * time.Second
