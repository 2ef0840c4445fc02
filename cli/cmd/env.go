package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/backend"
	"github.com/justapithecus/screener/cli/config"
	"github.com/justapithecus/screener/cli/render"
	"github.com/justapithecus/screener/cli/tui"
	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/record"
	"github.com/justapithecus/screener/retry"
)

// env is the per-invocation runtime shared by commands.
type env struct {
	cfg        *config.Config
	backendURL string
	timeout    time.Duration
	logger     *log.Logger
	metrics    *metrics.Collector
	backend    *backend.Client

	recordFile *os.File
	recorder   *record.Writer

	stdout   io.Writer
	stderr   io.Writer
	stats    bool
	statsTUI bool
}

// newEnv loads configuration and builds the logger, metrics and backend
// client for one command. Usage and config errors exit with exitUsage.
func newEnv(c *cli.Context, feature string) (*env, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitUsage)
		}
		cfg = loaded
	}

	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid --log-level: %v", err), exitUsage)
	}

	e := &env{
		cfg:        cfg,
		backendURL: config.ResolveBackendURL(c.String("backend-url"), cfg),
		stdout:     writerOr(c.App.Writer, os.Stdout),
		stderr:     writerOr(c.App.ErrWriter, os.Stderr),
		stats:      c.Bool("stats"),
		statsTUI:   c.Bool("tui"),
	}

	e.timeout = c.Duration("timeout")
	if e.timeout <= 0 {
		e.timeout = cfg.Backend.Timeout.Duration
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}

	e.logger = log.NewLoggerTo(log.Context{Feature: feature}, level, e.stderr)
	e.metrics = metrics.NewCollector(feature, e.backendURL, cfg.Scorecard.Backend)
	e.backend = backend.NewClient(backend.Config{
		BaseURL: e.backendURL,
		Headers: cfg.Backend.Headers,
		Timeout: e.timeout,
		Logger:  e.logger,
		Metrics: e.metrics,
	})

	if err := e.openRecorder(c.String("record"), feature); err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return e, nil
}

// openRecorder attaches a recording to the backend client. An explicit
// --record path wins over record.dir from the config file.
func (e *env) openRecorder(path, feature string) error {
	if path == "" && e.cfg.Record.Dir != "" {
		name := fmt.Sprintf("%s-%s.msgpack", feature, time.Now().UTC().Format("20060102T150405Z"))
		path = filepath.Join(e.cfg.Record.Dir, name)
	}
	if path == "" {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create recording directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create recording: %w", err)
	}
	e.recordFile = f
	e.recorder = record.NewWriter(f, feature)
	e.backend = e.backend.WithRecorder(e.recorder)
	e.logger.Debug("recording stream events", map[string]any{"path": path})
	return nil
}

// retrySchedule builds the feedback schedule from config.
func (e *env) retrySchedule() retry.Schedule {
	return retry.Schedule{
		MaxAttempts: e.cfg.Retry.MaxAttempts,
		FirstDelay:  e.cfg.Retry.FirstDelay.Duration,
		BaseDelay:   e.cfg.Retry.BaseDelay.Duration,
	}
}

// close flushes the recording and prints stats when requested.
func (e *env) close() error {
	var errs []error
	if e.recordFile != nil {
		e.logger.Debug("recording closed", map[string]any{"events": e.recorder.Count()})
		errs = append(errs, e.recordFile.Close())
	}
	if e.stats {
		errs = append(errs, e.printStats())
	}
	e.logger.Sync()
	return errors.Join(errs...)
}

// printStats shows the counters: the interactive view with --tui, a box on
// a terminal, JSON otherwise.
func (e *env) printStats() error {
	snap := e.metrics.Snapshot()
	f, ok := e.stderr.(*os.File)
	switch {
	case ok && isTTY(f) && e.statsTUI:
		return tui.Run(tui.ViewStats, snap)
	case ok && isTTY(f):
		_, err := fmt.Fprintln(e.stderr, tui.RenderStatsStatic(snap))
		return err
	default:
		return render.NewRendererWithWriter(render.FormatJSON, true, e.stderr).Render(snap)
	}
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

// isTTY returns true if f is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
