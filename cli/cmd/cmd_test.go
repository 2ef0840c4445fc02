package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/backend"
	"github.com/justapithecus/screener/cli/config"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/retry"
	"github.com/justapithecus/screener/scorecard"
	"github.com/justapithecus/screener/session"
	"github.com/justapithecus/screener/stream"
	"github.com/justapithecus/screener/types"
)

// runApp runs the CLI with args and returns stdout, stderr and the error.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := &cli.App{
		Name:           "screener",
		Flags:          GlobalFlags(),
		Commands:       Commands("test"),
		Writer:         &stdout,
		ErrWriter:      &stderr,
		ExitErrHandler: func(*cli.Context, error) {},
	}
	err := app.RunContext(t.Context(), append([]string{"screener"}, args...))
	return stdout.String(), stderr.String(), err
}

func sse(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, l := range lines {
		_, _ = io.WriteString(w, "data: "+l+"\n\n")
	}
}

func simulationBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != backend.PathScreening {
			http.NotFound(w, r)
			return
		}
		sse(w,
			`{"type":"start","persona":"qualified","name":"Jan"}`,
			`{"type":"agent","message":"Do you have a license?"}`,
			`{"type":"candidate","message":"Yes."}`,
			`{"type":"agent","message":"When can you start?"}`,
			`{"type":"candidate","message":"Monday."}`,
			`{"type":"complete","outcome":"completed","qualified":true,"total_turns":2,"session_id":"s1"}`,
			`[DONE]`,
		)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"explicit exit", cli.Exit("bad flag", exitUsage), exitUsage},
		{"server error event", &stream.StreamError{Message: "No agent configured"}, exitServerError},
		{"wrapped server error", fmt.Errorf("feedback: %w", &stream.StreamError{Message: "x"}), exitServerError},
		{"no session", session.ErrNoSession, exitUsage},
		{"invalid scorecard", fmt.Errorf("%w: rating", scorecard.ErrInvalid), exitUsage},
		{"invalid request", backend.ErrInvalidRequest, exitUsage},
		{"exhausted", &retry.ExhaustedError{Attempts: 3, Message: "failed", Err: errors.New("eof")}, exitTransport},
		{"busy", retry.ErrSubmissionInProgress, exitTransport},
		{"transport", errors.New("dial tcp: connection refused"), exitTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Messages(t *testing.T) {
	err := exitError(fmt.Errorf("simulate: %w", &stream.StreamError{Message: "No agent configured"}))
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("exitError() = %T, want cli.ExitCoder", err)
	}
	if ec.ExitCode() != exitServerError {
		t.Errorf("code = %d, want %d", ec.ExitCode(), exitServerError)
	}
	if err.Error() != "No agent configured" {
		t.Errorf("message = %q, want server message verbatim", err.Error())
	}

	err = exitError(&retry.ExhaustedError{Attempts: 3, Message: "Could not reach the server", Err: errors.New("eof")})
	if err.Error() != "Could not reach the server" {
		t.Errorf("message = %q", err.Error())
	}

	if exitError(nil) != nil {
		t.Error("exitError(nil) should be nil")
	}
}

func TestBuildNotifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NotifyConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.NotifyConfig{}, wantNil: true},
		{name: "url without type", cfg: config.NotifyConfig{URL: "http://x"}, wantErr: true},
		{name: "unknown type", cfg: config.NotifyConfig{Type: "sns", URL: "http://x"}, wantErr: true},
		{name: "webhook", cfg: config.NotifyConfig{Type: "webhook", URL: "http://127.0.0.1:1/hook"}},
		{name: "webhook without url", cfg: config.NotifyConfig{Type: "webhook"}, wantErr: true},
		{name: "redis", cfg: config.NotifyConfig{Type: "redis", URL: "redis://127.0.0.1:1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := buildNotifier(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildNotifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (n == nil) != tt.wantNil {
				t.Fatalf("buildNotifier() = %v, wantNil %v", n, tt.wantNil)
			}
			if n != nil {
				_ = n.Close()
			}
		})
	}
}

func TestRetriesOr(t *testing.T) {
	zero := 0
	if got := retriesOr(&zero, 3); got != 0 {
		t.Errorf("retriesOr(&0) = %d, want 0", got)
	}
	if got := retriesOr(nil, 3); got != 3 {
		t.Errorf("retriesOr(nil) = %d, want 3", got)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runApp(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if resp.Version != types.Version || resp.Commit != "test" {
		t.Errorf("version = %+v", resp)
	}
}

func TestVacanciesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != backend.PathVacancies {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("status"); got != "new" {
			t.Errorf("status query = %q, want new", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"v1","title":"Driver","company":"Acme","status":"new","candidates_count":3}]`)
	}))
	defer srv.Close()

	out, _, err := runApp(t, "--backend-url", srv.URL, "vacancies", "list", "--status", "new", "--format", "json")
	if err != nil {
		t.Fatalf("vacancies list: %v", err)
	}
	var items []types.Vacancy
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].ID != "v1" || items[0].CandidateCount != 3 {
		t.Errorf("vacancies = %+v", items)
	}
}

func TestVacanciesUpdate_EmptyPatch(t *testing.T) {
	_, _, err := runApp(t, "--backend-url", "http://127.0.0.1:1", "vacancies", "update", "v1")
	if got := ExitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitUsage, err)
	}
}

func TestInterviewGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != backend.PathGenerate {
			http.NotFound(w, r)
			return
		}
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.VacancyText != "Truck driver, Rotterdam" {
			t.Errorf("vacancy text = %q", req.VacancyText)
		}
		sse(w,
			`{"type":"status","message":"Analysing vacancy"}`,
			`{"type":"complete","interview":{"intro":"Welcome","knockout_questions":[{"id":"ko_1","question":"Do you have a license?"}]},"session_id":"abc123","message":"done"}`,
			`[DONE]`,
		)
	}))
	defer srv.Close()

	out, errOut, err := runApp(t, "--backend-url", srv.URL,
		"interview", "generate", "--text", "Truck driver, Rotterdam", "--format", "json")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(errOut, "Analysing vacancy") {
		t.Errorf("stderr = %q, want progress label", errOut)
	}
	var rep InterviewReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.SessionID != "abc123" || rep.Questions != 1 || rep.Message != "done" {
		t.Errorf("report = %+v", rep)
	}
}

func TestInterviewGenerate_RequiresInput(t *testing.T) {
	_, _, err := runApp(t, "interview", "generate")
	if got := ExitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestSimulate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sse(w, `{"type":"error","message":"No agent configured"}`)
	}))
	defer srv.Close()

	_, _, err := runApp(t, "--backend-url", srv.URL, "simulate", "--vacancy", "v1", "--format", "json")
	if got := ExitCode(err); got != exitServerError {
		t.Fatalf("exit code = %d, want %d (err %v)", got, exitServerError, err)
	}
	if err.Error() != "No agent configured" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestSimulate_ScorecardNotifyAndReplay(t *testing.T) {
	srv := simulationBackend(t)

	var (
		mu     sync.Mutex
		events []notify.SessionCompletedEvent
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.SessionCompletedEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	dir := t.TempDir()
	storePath := filepath.Join(dir, "scorecards")
	recording := filepath.Join(dir, "sim.msgpack")

	out, errOut, err := runApp(t, "--backend-url", srv.URL, "--record", recording,
		"simulate", "--vacancy", "v1", "--persona", "qualified",
		"--rating", "4", "--notes", "solid",
		"--store-path", storePath,
		"--notify-type", "webhook", "--notify-url", hook.URL,
		"--format", "json")
	if err != nil {
		t.Fatalf("simulate: %v\nstderr: %s", err, errOut)
	}
	if !strings.Contains(errOut, "Jan: Yes.") {
		t.Errorf("stderr = %q, want streamed lines", errOut)
	}

	var rep SimulationReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.Outcome != types.OutcomeCompleted || rep.SessionID != "s1" {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Lines) != 4 || len(rep.Pairs) != 2 {
		t.Errorf("lines = %d, pairs = %d, want 4 and 2", len(rep.Lines), len(rep.Pairs))
	}
	if rep.ScorecardID == "" {
		t.Fatal("expected a saved scorecard ID")
	}

	mu.Lock()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	mu.Unlock()
	if ev.EventType != notify.EventSessionCompleted || ev.ScorecardID != rep.ScorecardID || ev.Rating != 4 {
		t.Errorf("event = %+v", ev)
	}

	out, _, err = runApp(t, "scorecard", "list", "--vacancy", "v1", "--store-path", storePath, "--format", "json")
	if err != nil {
		t.Fatalf("scorecard list: %v", err)
	}
	var cards []types.Scorecard
	if err := json.Unmarshal([]byte(out), &cards); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(cards) != 1 || cards[0].ID != rep.ScorecardID || cards[0].Notes != "solid" {
		t.Errorf("scorecards = %+v", cards)
	}

	out, _, err = runApp(t, "replay", recording, "--format", "json")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	var replayed ReplayReport
	if err := json.Unmarshal([]byte(out), &replayed); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if replayed.Feature != "simulate" || len(replayed.Lines) != 4 || replayed.Outcome != types.OutcomeCompleted {
		t.Errorf("replay = %+v", replayed)
	}
}

func TestSimulate_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative max turns", []string{"simulate", "--vacancy", "v1", "--max-turns", "-1"}},
		{"rating too high", []string{"simulate", "--vacancy", "v1", "--rating", "9"}},
		{"notify url without type", []string{"simulate", "--vacancy", "v1", "--notify-url", "http://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, append([]string{"--backend-url", "http://127.0.0.1:1"}, tt.args...)...)
			if got := ExitCode(err); got != exitUsage {
				t.Errorf("exit code = %d, want %d (err %v)", got, exitUsage, err)
			}
		})
	}
}

func TestScorecardAdd_Invalid(t *testing.T) {
	_, _, err := runApp(t, "scorecard", "add", "--vacancy", "v1", "--rating", "7",
		"--store-backend", "memory", "--format", "json")
	if got := ExitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitUsage, err)
	}
}

func TestReplay_MissingFile(t *testing.T) {
	_, _, err := runApp(t, "replay", filepath.Join(t.TempDir(), "nope.msgpack"))
	if got := ExitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
}
