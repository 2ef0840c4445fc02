package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/tui"
	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/session"
	"github.com/justapithecus/screener/transcript"
	"github.com/justapithecus/screener/types"
)

// SimulationReport is the response for simulate and replay.
type SimulationReport struct {
	VacancyID     string                  `json:"vacancy_id,omitempty" yaml:"vacancy_id,omitempty"`
	SessionID     string                  `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Persona       string                  `json:"persona,omitempty" yaml:"persona,omitempty"`
	CandidateName string                  `json:"candidate_name,omitempty" yaml:"candidate_name,omitempty"`
	Outcome       types.SimulationOutcome `json:"outcome" yaml:"outcome"`
	Qualified     *bool                   `json:"qualified,omitempty" yaml:"qualified,omitempty"`
	TotalTurns    int                     `json:"total_turns" yaml:"total_turns"`
	Summary       string                  `json:"summary,omitempty" yaml:"summary,omitempty" table:"-"`
	DurationMs    int64                   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	ScorecardID   string                  `json:"scorecard_id,omitempty" yaml:"scorecard_id,omitempty"`
	Lines         []transcript.Line       `json:"lines" yaml:"lines" table:"-"`
	Pairs         []transcript.QAPair     `json:"pairs,omitempty" yaml:"pairs,omitempty" table:"-"`
}

// SimulateCommand returns the simulate command.
func SimulateCommand() *cli.Command {
	flags := append(OutputFlags(),
		&cli.StringFlag{Name: "vacancy", Aliases: []string{"v"}, Usage: "Vacancy ID", Required: true},
		&cli.StringFlag{Name: "persona", Usage: "Candidate persona (backend-defined, e.g. qualified, unqualified)"},
		&cli.IntFlag{Name: "max-turns", Usage: "Maximum agent turns (0 = backend default)"},
		&cli.IntFlag{Name: "rating", Usage: fmt.Sprintf("Save a scorecard with this rating (1-%d)", types.MaxRating)},
		&cli.StringFlag{Name: "notes", Usage: "Scorecard notes (with --rating)"},
	)
	flags = append(flags, notifyFlags()...)
	flags = append(flags, storeFlags()...)

	return &cli.Command{
		Name:   "simulate",
		Usage:  "Run a simulated screening conversation against a vacancy's agent",
		Flags:  flags,
		Action: simulateAction,
	}
}

func simulateAction(c *cli.Context) error {
	if c.Int("max-turns") < 0 {
		return cli.Exit("--max-turns must not be negative", exitUsage)
	}
	if c.IsSet("rating") && (c.Int("rating") < 1 || c.Int("rating") > types.MaxRating) {
		return cli.Exit(fmt.Sprintf("--rating must be between 1 and %d", types.MaxRating), exitUsage)
	}

	r, e, err := setup(c, "simulate")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	notifier, err := buildNotifier(notifyConfig(c, e.cfg.Notify))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if notifier != nil {
		defer iox.DiscardClose(notifier)
	}

	req := types.ScreeningChatRequest{
		VacancyID: c.String("vacancy"),
		Persona:   c.String("persona"),
		MaxTurns:  c.Int("max-turns"),
	}
	sim := session.NewSimulation(e.backend, e.logger, e.metrics)

	start := time.Now()
	var res *types.SimulationResult
	if c.Bool("tui") {
		res, err = simulateTUI(c.Context, sim, req)
	} else {
		res, err = sim.Start(c.Context, req, linePrinter(e.stderr))
	}
	if err != nil {
		return exitError(err)
	}
	duration := time.Since(start)

	folder := sim.Transcript()
	report := SimulationReport{
		VacancyID:     req.VacancyID,
		SessionID:     res.SessionID,
		Persona:       res.Persona,
		CandidateName: res.CandidateName,
		Outcome:       res.Outcome,
		Qualified:     res.Qualified,
		TotalTurns:    res.TotalTurns,
		Summary:       res.Summary,
		DurationMs:    duration.Milliseconds(),
		Lines:         folder.Lines(),
		Pairs:         folder.Pairs(),
	}

	ev := notify.FromSimulation(req.VacancyID, res, duration, time.Now())
	if c.IsSet("rating") {
		saved, err := saveSimulationScorecard(c, e, report)
		if err != nil {
			return exitError(err)
		}
		report.ScorecardID = saved.ID
		ev.ScorecardID = saved.ID
		ev.Rating = saved.Rating
	}

	publish(c.Context, notifier, ev, e.logger, e.metrics)

	return r.Render(report)
}

// simulateTUI runs the simulation behind a live transcript view. Quitting
// the view cancels a run still in flight.
func simulateTUI(ctx context.Context, sim *session.Simulation, req types.ScreeningChatRequest) (*types.SimulationResult, error) {
	live := tui.NewLive("Screening simulation · " + req.VacancyID)

	type outcome struct {
		res *types.SimulationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := sim.Start(ctx, req, live.Line)
		if err != nil {
			live.Finish("", err)
		} else {
			live.Finish(resultSummary(res), nil)
		}
		done <- outcome{res, err}
	}()

	_, runErr := live.Run()
	sim.Cancel()
	out := <-done
	if runErr != nil && out.err == nil {
		return nil, runErr
	}
	return out.res, out.err
}

func saveSimulationScorecard(c *cli.Context, e *env, rep SimulationReport) (*types.Scorecard, error) {
	store, err := openStore(c, e)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(store)

	return store.Append(c.Context, types.Scorecard{
		VacancyID:     rep.VacancyID,
		SessionID:     rep.SessionID,
		Persona:       rep.Persona,
		CandidateName: rep.CandidateName,
		Outcome:       rep.Outcome,
		Rating:        c.Int("rating"),
		Notes:         c.String("notes"),
		Turns:         rep.TotalTurns,
	})
}

// linePrinter prints transcript lines to w as they arrive.
func linePrinter(w io.Writer) session.LineFunc {
	return func(l transcript.Line) {
		fmt.Fprintf(w, "%s: %s\n", l.Speaker, l.Text)
	}
}

func resultSummary(res *types.SimulationResult) string {
	s := fmt.Sprintf("%s after %d turns", res.Outcome, res.TotalTurns)
	if res.Qualified != nil {
		if *res.Qualified {
			s += " · qualified"
		} else {
			s += " · not qualified"
		}
	}
	return s
}
