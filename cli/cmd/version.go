package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/render"
	"github.com/justapithecus/screener/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command. It never contacts the backend.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag, NoColorFlag},
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			return r.Render(VersionResponse{Version: types.Version, Commit: commit})
		},
	}
}

// Commands returns every top-level command.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		VacanciesCommand(),
		InterviewCommand(),
		SimulateCommand(),
		ScorecardCommand(),
		ReplayCommand(),
		ServeCommand(),
		VersionCommand(commit),
	}
}
