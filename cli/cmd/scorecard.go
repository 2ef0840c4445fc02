package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/scorecard"
	"github.com/justapithecus/screener/types"
)

// storeFlags select the scorecard store. Unset flags fall back to the
// scorecard section of the config file.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "store-backend", Usage: "Scorecard storage backend: fs, s3 or memory"},
		&cli.StringFlag{Name: "store-path", Usage: "Scorecard fs root, or bucket/prefix for s3"},
		&cli.StringFlag{Name: "store-region", Usage: "AWS region for s3"},
		&cli.StringFlag{Name: "store-endpoint", Usage: "Custom S3 endpoint (R2, MinIO)"},
		&cli.BoolFlag{Name: "store-path-style", Usage: "Force S3 path-style addressing"},
	}
}

func storeConfig(c *cli.Context, e *env) scorecard.Config {
	sc := e.cfg.Scorecard
	cfg := scorecard.Config{
		Backend:      sc.Backend,
		Path:         sc.Path,
		Region:       sc.Region,
		Endpoint:     sc.Endpoint,
		UsePathStyle: sc.S3PathStyle,
	}
	if c.IsSet("store-backend") {
		cfg.Backend = c.String("store-backend")
	}
	if c.IsSet("store-path") {
		cfg.Path = c.String("store-path")
	}
	if c.IsSet("store-region") {
		cfg.Region = c.String("store-region")
	}
	if c.IsSet("store-endpoint") {
		cfg.Endpoint = c.String("store-endpoint")
	}
	if c.IsSet("store-path-style") {
		cfg.UsePathStyle = c.Bool("store-path-style")
	}
	return cfg
}

func openStore(c *cli.Context, e *env) (*scorecard.Store, error) {
	store, err := scorecard.Open(c.Context, storeConfig(c, e), e.logger, e.metrics)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return store, nil
}

// ScorecardCommand returns the scorecard command group.
func ScorecardCommand() *cli.Command {
	return &cli.Command{
		Name:    "scorecard",
		Aliases: []string{"scorecards"},
		Usage:   "Record and list screening scorecards",
		Subcommands: []*cli.Command{
			scorecardListCommand(),
			scorecardAddCommand(),
		},
	}
}

func scorecardListCommand() *cli.Command {
	flags := append(OutputFlags(),
		&cli.StringFlag{Name: "vacancy", Aliases: []string{"v"}, Usage: "Only scorecards for this vacancy"},
		&cli.IntFlag{Name: "limit", Usage: "Maximum results (0 = all)"},
	)
	return &cli.Command{
		Name:  "list",
		Usage: "List scorecards, newest first",
		Flags: append(flags, storeFlags()...),
		Action: func(c *cli.Context) error {
			if c.Int("limit") < 0 {
				return cli.Exit("--limit must not be negative", exitUsage)
			}
			r, e, err := setup(c, "scorecard")
			if err != nil {
				return err
			}
			defer iox.DiscardErr(e.close)

			store, err := openStore(c, e)
			if err != nil {
				return err
			}
			defer iox.DiscardClose(store)

			cards, err := store.List(c.Context, scorecard.Filter{
				VacancyID: c.String("vacancy"),
				Limit:     c.Int("limit"),
			})
			if err != nil {
				return exitError(err)
			}
			if cards == nil {
				cards = []types.Scorecard{}
			}
			return r.Render(cards)
		},
	}
}

func scorecardAddCommand() *cli.Command {
	flags := append(OutputFlags(),
		&cli.StringFlag{Name: "vacancy", Aliases: []string{"v"}, Usage: "Vacancy ID", Required: true},
		&cli.StringFlag{Name: "session", Usage: "Screening session ID"},
		&cli.IntFlag{Name: "rating", Usage: fmt.Sprintf("Rating 1-%d (0 = unrated)", types.MaxRating)},
		&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
		&cli.IntFlag{Name: "turns", Usage: "Number of turns in the session"},
		&cli.StringFlag{Name: "outcome", Usage: "Simulation outcome (completed, max_turns_reached)"},
		&cli.StringFlag{Name: "persona", Usage: "Candidate persona"},
		&cli.StringFlag{Name: "candidate", Usage: "Candidate display name"},
	)
	flags = append(flags, storeFlags()...)
	flags = append(flags, notifyFlags()...)

	return &cli.Command{
		Name:  "add",
		Usage: "Append a scorecard",
		Flags: flags,
		Action: func(c *cli.Context) error {
			r, e, err := setup(c, "scorecard")
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

			store, err := openStore(c, e)
			if err != nil {
				return err
			}
			defer iox.DiscardClose(store)

			saved, err := store.Append(c.Context, types.Scorecard{
				VacancyID:     c.String("vacancy"),
				SessionID:     c.String("session"),
				Persona:       c.String("persona"),
				CandidateName: c.String("candidate"),
				Outcome:       types.SimulationOutcome(c.String("outcome")),
				Rating:        c.Int("rating"),
				Notes:         c.String("notes"),
				Turns:         c.Int("turns"),
			})
			if err != nil {
				return exitError(err)
			}

			publish(c.Context, notifier, notify.FromScorecard(saved, time.Now()), e.logger, e.metrics)
			return r.Render(saved)
		},
	}
}
