package session

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/stream"
	"github.com/justapithecus/screener/transcript"
	"github.com/justapithecus/screener/types"
)

// ErrSimulationRunning is returned by Start while another run is in flight.
var ErrSimulationRunning = errors.New("simulation already running")

// ScreeningAPI is the subset of the backend used by Simulation.
type ScreeningAPI interface {
	ScreeningChat(ctx context.Context, req types.ScreeningChatRequest, h stream.Handler) (*types.SimulationCompletePayload, error)
}

// LineFunc receives each transcript line as it is appended.
type LineFunc func(transcript.Line)

// Simulation runs screening simulations for one vacancy, one at a time.
// A run can be canceled from another goroutine; a canceled run has no result.
type Simulation struct {
	api       ScreeningAPI
	logger    *log.Logger
	collector *metrics.Collector

	mu     sync.Mutex
	cancel context.CancelFunc
	folder *transcript.SimulationFolder
}

// NewSimulation creates a simulator.
func NewSimulation(api ScreeningAPI, logger *log.Logger, collector *metrics.Collector) *Simulation {
	return &Simulation{
		api:       api,
		logger:    logger,
		collector: collector,
		folder:    transcript.NewSimulationFolder(),
	}
}

// Start runs one simulation and blocks until it ends. onLine may be nil.
// Returns *stream.CanceledError when Cancel (or ctx) stopped the run.
func (s *Simulation) Start(ctx context.Context, req types.ScreeningChatRequest, onLine LineFunc) (*types.SimulationResult, error) {
	req.Simulate = true

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		s.collector.IncGuardRejection()
		return nil, ErrSimulationRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	folder := transcript.NewSimulationFolder()
	s.folder = folder
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	logger := s.logger.With(log.Context{Feature: "simulate", VacancyID: req.VacancyID})
	logger.Info("simulation started", map[string]any{
		"persona":   req.Persona,
		"max_turns": req.MaxTurns,
	})

	payload, err := s.api.ScreeningChat(runCtx, req, func(ev *types.StreamEvent) {
		line, ok := folder.Apply(ev)
		if ok && onLine != nil {
			onLine(line)
		}
	})
	if err != nil {
		if stream.IsCanceled(err) {
			logger.Info("simulation canceled", map[string]any{
				"lines": len(folder.Lines()),
			})
		}
		return nil, err
	}

	result := folder.Result()
	if result == nil {
		// Terminal payload decoded without a folded complete; rebuild from it.
		result = &types.SimulationResult{
			Outcome:    payload.Outcome,
			Qualified:  payload.Qualified,
			Summary:    payload.Summary,
			TotalTurns: payload.TotalTurns,
			SessionID:  payload.SessionID,
		}
	}
	if result.Persona == "" {
		result.Persona = req.Persona
	}

	logger.Info("simulation finished", map[string]any{
		"outcome": string(result.Outcome),
		"turns":   result.TotalTurns,
	})
	return result, nil
}

// Cancel stops the running simulation, if any. It reports whether one was running.
func (s *Simulation) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Running reports whether a simulation is in flight.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Transcript returns the folder of the current or most recent run.
func (s *Simulation) Transcript() *transcript.SimulationFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}
