package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Feature: "feedback", VacancyID: "vac-1", SessionID: "abc123"}, zapcore.DebugLevel, &buf)

	l.Info("stream started", map[string]any{"path": "/interview/feedback"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "stream started" {
		t.Errorf("message = %v", e["message"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v", e["level"])
	}
	if e["feature"] != "feedback" || e["vacancy_id"] != "vac-1" || e["session_id"] != "abc123" {
		t.Errorf("context fields missing: %v", e)
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["path"] != "/interview/feedback" {
		t.Errorf("fields = %v", e["fields"])
	}
}

func TestLogger_OmitsEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Feature: "relay"}, zapcore.DebugLevel, &buf)
	l.Debug("ping", nil)

	e := decodeLines(t, &buf)[0]
	if _, ok := e["session_id"]; ok {
		t.Errorf("session_id should be omitted when empty: %v", e)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{}, zapcore.WarnLevel, &buf)
	l.Info("dropped", nil)
	l.Warn("kept", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "kept" {
		t.Errorf("entries = %v", entries)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Feature: "generate"}, zapcore.DebugLevel, &buf)
	l.With(Context{SessionID: "s-9"}).Info("session assigned", nil)

	e := decodeLines(t, &buf)[0]
	if e["feature"] != "generate" || e["session_id"] != "s-9" {
		t.Errorf("child logger lost context: %v", e)
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Error("x", nil)
	l.Sync()
	if l.With(Context{Feature: "x"}) != nil {
		t.Error("With on nil logger should return nil")
	}
	l.Sugar().Infof("still fine %d", 1)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
