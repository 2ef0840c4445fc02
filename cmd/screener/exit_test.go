package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	exitErrHandler(nil, nil)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "nil", err: nil, wantCode: 0},
		{name: "exit 0 no message", err: cli.Exit("", 0), wantCode: 0},
		{name: "server error", err: cli.Exit("No agent configured", 1), wantCode: 1, wantMsg: "No agent configured\n"},
		{name: "transport", err: cli.Exit("connection refused", 2), wantCode: 2, wantMsg: "connection refused\n"},
		{name: "usage", err: cli.Exit("missing <vacancy-id>", 3), wantCode: 3, wantMsg: "missing <vacancy-id>\n"},
		{name: "bare exit status", err: cli.Exit("", 2), wantCode: 2},
		{name: "wrapped", err: errors.Join(errors.New("context"), cli.Exit("inner", 42)), wantCode: 42},
		{name: "flag error", err: errors.New(`Required flag "vacancy" not set`), wantCode: exitUsage, wantMsg: "Error: Required flag \"vacancy\" not set\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := exitCode(tt.err, &buf); got != tt.wantCode {
				t.Errorf("exitCode() = %d, want %d", got, tt.wantCode)
			}
			if tt.wantMsg != "" && buf.String() != tt.wantMsg {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantMsg)
			}
			if tt.wantMsg == "" && tt.name != "wrapped" && buf.Len() != 0 {
				t.Errorf("unexpected output %q", buf.String())
			}
		})
	}
}
