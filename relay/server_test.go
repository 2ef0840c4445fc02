package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/scorecard"
	"github.com/justapithecus/screener/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*notify.SessionCompletedEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev *notify.SessionCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) published() []*notify.SessionCompletedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*notify.SessionCompletedEvent(nil), n.events...)
}

func newStore(t *testing.T) *scorecard.Store {
	t.Helper()
	ds, err := scorecard.NewDataset(lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return scorecard.NewStore(ds, nil, nil)
}

func newRelay(t *testing.T, backendURL string, n notify.Notifier, c *metrics.Collector) *httptest.Server {
	t.Helper()
	srv, err := NewServer(Config{
		BackendURL: backendURL,
		Store:      newStore(t),
		Notifier:   n,
		Metrics:    c,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestNewServer_Validation(t *testing.T) {
	store := newStore(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing backend", Config{Store: store}},
		{"missing store", Config{BackendURL: "http://localhost:8080"}},
		{"relative backend", Config{BackendURL: "localhost", Store: store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestProxy_RewritesPathAndForwardsRequestID(t *testing.T) {
	var gotPath, gotQuery, gotRequestID, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer backend.Close()

	relay := newRelay(t, backend.URL, nil, nil)

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, relay.URL+"/api/backend/vacancies?status=open", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if gotPath != "/vacancies" {
		t.Errorf("backend path = %q, want /vacancies", gotPath)
	}
	if gotQuery != "status=open" {
		t.Errorf("backend query = %q", gotQuery)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want forwarded untouched", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected a request ID on the backend request")
	}
	if resp.Header.Get(RequestIDHeader) != gotRequestID {
		t.Errorf("response request ID = %q, want %q", resp.Header.Get(RequestIDHeader), gotRequestID)
	}
}

func TestProxy_KeepsBackendBasePath(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	relay := newRelay(t, backend.URL+"/v1", nil, nil)

	resp, err := http.Post(relay.URL+"/api/backend/interview/reorder", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if gotPath != "/v1/interview/reorder" {
		t.Errorf("backend path = %q, want /v1/interview/reorder", gotPath)
	}
}

func TestProxy_StreamsEventsBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "data: {\"type\":\"status\",\"message\":\"Analyzing\"}\n\n")
		flusher.Flush()
		<-release
		_, _ = io.WriteString(w, "data: {\"type\":\"complete\",\"content\":{}}\n\n")
		flusher.Flush()
	}))
	defer backend.Close()
	defer close(release)

	collector := metrics.NewCollector("relay", backend.URL, "memory")
	relay := newRelay(t, backend.URL, nil, collector)

	resp, err := http.Post(relay.URL+"/api/backend/interview/generate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	// The first event arrives while the backend is still holding the stream.
	lineCh := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(resp.Body).ReadString('\n')
		lineCh <- line
	}()
	select {
	case line := <-lineCh:
		if !strings.Contains(line, "Analyzing") {
			t.Errorf("first line = %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not flushed through the relay")
	}

	if got := collector.Snapshot().StreamsStarted; got != 1 {
		t.Errorf("StreamsStarted = %d, want 1", got)
	}
}

func TestProxy_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	addr := backend.URL
	backend.Close()

	collector := metrics.NewCollector("relay", addr, "memory")
	relay := newRelay(t, addr, nil, collector)

	resp, err := http.Get(relay.URL + "/api/backend/vacancies")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["detail"] == "" {
		t.Error("expected a detail message")
	}
	if got := collector.Snapshot().TransportFailures; got != 1 {
		t.Errorf("TransportFailures = %d, want 1", got)
	}
}

func TestScorecard_PostThenList(t *testing.T) {
	n := &recordingNotifier{}
	relay := newRelay(t, "http://backend.invalid", n, nil)

	post := func(body string) *http.Response {
		t.Helper()
		resp, err := http.Post(relay.URL+ScorecardPath, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	resp := post(`{"vacancy_id":"v1","rating":4,"turns":6,"notes":"good"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var saved types.Scorecard
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if saved.ID == "" || saved.CreatedAt == "" {
		t.Errorf("saved = %+v, want ID and CreatedAt assigned", saved)
	}

	post(`{"vacancy_id":"v2","rating":2}`).Body.Close()

	resp, err := http.Get(relay.URL + ScorecardPath + "?vacancy_id=v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var cards []types.Scorecard
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != saved.ID {
		t.Errorf("cards = %+v, want only %s", cards, saved.ID)
	}

	events := n.published()
	if len(events) != 2 {
		t.Fatalf("published %d events, want 2", len(events))
	}
	if events[0].EventType != notify.EventScorecardSaved || events[0].ScorecardID != saved.ID {
		t.Errorf("event = %+v", events[0])
	}
}

func TestScorecard_ListEmptyIsArray(t *testing.T) {
	relay := newRelay(t, "http://backend.invalid", nil, nil)

	resp, err := http.Get(relay.URL + ScorecardPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestScorecard_BadRequests(t *testing.T) {
	relay := newRelay(t, "http://backend.invalid", nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, ScorecardPath, `{`, http.StatusBadRequest},
		{"missing vacancy", http.MethodPost, ScorecardPath, `{"rating":3}`, http.StatusBadRequest},
		{"rating out of range", http.MethodPost, ScorecardPath, `{"vacancy_id":"v1","rating":9}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, ScorecardPath + "?limit=x", ``, http.StatusBadRequest},
		{"unsupported method", http.MethodDelete, ScorecardPath, ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequestWithContext(t.Context(), tt.method, relay.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestScorecard_NotifyFailureDoesNotFailSave(t *testing.T) {
	n := &recordingNotifier{err: errors.New("redis down")}
	collector := metrics.NewCollector("relay", "", "memory")
	relay := newRelay(t, "http://backend.invalid", n, collector)

	resp, err := http.Post(relay.URL+ScorecardPath, "application/json", strings.NewReader(`{"vacancy_id":"v1"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if got := collector.Snapshot().NotifyFailure; got != 1 {
		t.Errorf("NotifyFailure = %d, want 1", got)
	}
}

func TestHealth(t *testing.T) {
	relay := newRelay(t, "http://backend.invalid", nil, nil)

	resp, err := http.Get(relay.URL + HealthPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" || body["version"] != types.Version {
		t.Errorf("body = %v", body)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, err := NewServer(Config{BackendURL: "http://backend.invalid", Store: newStore(t)})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + HealthPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
