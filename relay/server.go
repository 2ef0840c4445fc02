// Package relay serves the same-origin relay: backend calls are proxied
// through /api/backend/ and test scorecards are kept locally under
// /api/test-scorecard.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/scorecard"
	"github.com/justapithecus/screener/types"
)

// Route prefixes.
const (
	BackendPrefix = "/api/backend/"
	ScorecardPath = "/api/test-scorecard"
	HealthPath    = "/healthz"
)

// RequestIDHeader carries the per-request ID to the backend and back.
const RequestIDHeader = "X-Request-Id"

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:3000"

// maxScorecardBody bounds POST bodies on the scorecard endpoint.
const maxScorecardBody = 1 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// ScorecardStore is the subset of the scorecard store the relay needs.
type ScorecardStore interface {
	Append(ctx context.Context, sc types.Scorecard) (*types.Scorecard, error)
	List(ctx context.Context, f scorecard.Filter) ([]types.Scorecard, error)
}

// Config configures the relay.
type Config struct {
	// BackendURL is the origin proxied under /api/backend/ (required).
	BackendURL string
	// Store backs /api/test-scorecard (required).
	Store ScorecardStore
	// Notifier publishes scorecard_saved events. Optional.
	Notifier notify.Notifier
	// NotifyTimeout bounds each publish (default 10s).
	NotifyTimeout time.Duration
	Logger        *log.Logger
	Metrics       *metrics.Collector
}

// Server is the relay HTTP handler.
type Server struct {
	cfg     Config
	backend *url.URL
	proxy   *httputil.ReverseProxy
	mux     *http.ServeMux
	logger  *log.Logger
	now     func() time.Time
}

// NewServer builds the relay handler.
func NewServer(cfg Config) (*Server, error) {
	if cfg.BackendURL == "" {
		return nil, errors.New("relay: backend URL is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("relay: scorecard store is required")
	}
	target, err := url.Parse(cfg.BackendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("relay: invalid backend URL %q", cfg.BackendURL)
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		backend: target,
		mux:     http.NewServeMux(),
		logger:  cfg.Logger,
		now:     time.Now,
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite:        s.rewrite,
		FlushInterval:  -1, // event streams are flushed per write
		ErrorHandler:   s.proxyError,
		ModifyResponse: s.modifyResponse,
	}

	s.mux.Handle(BackendPrefix, s.proxy)
	s.mux.HandleFunc("GET "+ScorecardPath, s.listScorecards)
	s.mux.HandleFunc("POST "+ScorecardPath, s.appendScorecard)
	s.mux.HandleFunc("GET "+HealthPath, s.health)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.New().String())
	}
	w.Header().Set(RequestIDHeader, r.Header.Get(RequestIDHeader))
	s.mux.ServeHTTP(w, r)
}

// rewrite maps /api/backend/<path> onto the backend origin.
func (s *Server) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(s.backend)
	rest := strings.TrimPrefix(pr.In.URL.Path, strings.TrimSuffix(BackendPrefix, "/"))
	pr.Out.URL.Path = singleJoin(s.backend.Path, rest)
	pr.Out.URL.RawPath = ""
	pr.Out.Host = s.backend.Host
	pr.SetXForwarded()
	pr.Out.Header.Set(RequestIDHeader, pr.In.Header.Get(RequestIDHeader))

	s.logger.Debug("relaying request", map[string]any{
		"method":     pr.In.Method,
		"path":       pr.Out.URL.Path,
		"request_id": pr.In.Header.Get(RequestIDHeader),
	})
}

func (s *Server) modifyResponse(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		s.cfg.Metrics.IncStreamStarted()
		resp.Header.Set("Cache-Control", "no-cache")
		resp.Header.Set("X-Accel-Buffering", "no")
	}
	return nil
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.cfg.Metrics.IncTransportFailure()
	s.logger.Warn("backend unreachable", map[string]any{
		"path":       r.URL.Path,
		"request_id": r.Header.Get(RequestIDHeader),
		"error":      err.Error(),
	})
	writeJSONError(w, http.StatusBadGateway, "backend unreachable")
}

func (s *Server) listScorecards(w http.ResponseWriter, r *http.Request) {
	f := scorecard.Filter{VacancyID: r.URL.Query().Get("vacancy_id")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	cards, err := s.cfg.Store.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing scorecards failed", map[string]any{"error": err.Error()})
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	if cards == nil {
		cards = []types.Scorecard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) appendScorecard(w http.ResponseWriter, r *http.Request) {
	var sc types.Scorecard
	dec := json.NewDecoder(io.LimitReader(r.Body, maxScorecardBody))
	if err := dec.Decode(&sc); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid scorecard: "+err.Error())
		return
	}

	saved, err := s.cfg.Store.Append(r.Context(), sc)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, saved)

	s.publish(r.Context(), saved)
}

// publish is best-effort: failures are logged and counted only.
func (s *Server) publish(ctx context.Context, sc *types.Scorecard) {
	if s.cfg.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.cfg.Notifier.Publish(ctx, notify.FromScorecard(sc, s.now())); err != nil {
		s.cfg.Metrics.IncNotifyFailure()
		s.logger.Warn("notification failed", map[string]any{
			"scorecard_id": sc.ID,
			"error":        err.Error(),
		})
		return
	}
	s.cfg.Metrics.IncNotifySuccess()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": types.Version,
	})
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", map[string]any{
			"addr":    ln.Addr().String(),
			"backend": s.backend.String(),
		})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay: serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("relay shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay: shutdown: %w", err)
	}
	return nil
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scorecard.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, scorecard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scorecard.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, scorecard.ErrThrottled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func singleJoin(a, b string) string {
	switch {
	case a == "":
		return b
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	}
	return a + b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError uses the detail key the backend uses for its own errors.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
