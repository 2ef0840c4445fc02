package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/render"
	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/types"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// VacanciesCommand returns the vacancies command with subcommands.
func VacanciesCommand() *cli.Command {
	return &cli.Command{
		Name:  "vacancies",
		Usage: "List, show, update and delete vacancies",
		Subcommands: []*cli.Command{
			vacanciesListCommand(),
			vacanciesGetCommand(),
			vacanciesUpdateCommand(),
			vacanciesDeleteCommand(),
		},
	}
}

func vacanciesListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List vacancies",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "status", Usage: "Filter by status: new, in_progress, agent_created, screening_active, archived"},
			&cli.StringFlag{Name: "source", Usage: "Filter by source"},
			&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Free-text search"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of vacancies to return (0 = backend default)"},
			&cli.IntFlag{Name: "offset", Usage: "Number of vacancies to skip"},
		),
		Action: vacanciesListAction,
	}
}

func vacanciesListAction(c *cli.Context) error {
	r, e, err := setup(c, "vacancies")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for vacancies commands", exitUsage)
	}

	q := types.VacancyQuery{
		Status: types.VacancyStatus(c.String("status")),
		Source: c.String("source"),
		Search: c.String("search"),
		Limit:  c.Int("limit"),
		Offset: c.Int("offset"),
	}
	if q.Limit < 0 || q.Offset < 0 {
		return cli.Exit("--limit and --offset must not be negative", exitUsage)
	}

	page, err := e.backend.ListVacancies(c.Context, q)
	if err != nil {
		return exitError(err)
	}

	if len(page.Items) > listWarningThreshold && q.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(e.stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(page.Items))
	}
	return r.Render(page.Items)
}

func vacanciesGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one vacancy",
		ArgsUsage: "<vacancy-id>",
		Flags:     OutputFlags(),
		Action:    vacanciesGetAction,
	}
}

func vacanciesGetAction(c *cli.Context) error {
	id, err := requireArg(c, "vacancy-id")
	if err != nil {
		return err
	}
	r, e, err := setup(c, "vacancies")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for vacancies commands", exitUsage)
	}

	v, err := e.backend.GetVacancy(c.Context, id)
	if err != nil {
		return exitError(err)
	}
	return r.Render(v)
}

func vacanciesUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update vacancy fields",
		ArgsUsage: "<vacancy-id>",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "title", Usage: "New title"},
			&cli.StringFlag{Name: "status", Usage: "New status"},
			&cli.StringFlag{Name: "location", Usage: "New location"},
			&cli.StringFlag{Name: "description", Usage: "New description"},
		),
		Action: vacanciesUpdateAction,
	}
}

func vacanciesUpdateAction(c *cli.Context) error {
	id, err := requireArg(c, "vacancy-id")
	if err != nil {
		return err
	}
	r, e, err := setup(c, "vacancies")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	var patch types.VacancyPatch
	if c.IsSet("title") {
		v := c.String("title")
		patch.Title = &v
	}
	if c.IsSet("status") {
		v := types.VacancyStatus(c.String("status"))
		patch.Status = &v
	}
	if c.IsSet("location") {
		v := c.String("location")
		patch.Location = &v
	}
	if c.IsSet("description") {
		v := c.String("description")
		patch.Description = &v
	}
	if patch.IsEmpty() {
		return cli.Exit("nothing to update: set at least one of --title, --status, --location, --description", exitUsage)
	}

	v, err := e.backend.UpdateVacancy(c.Context, id, patch)
	if err != nil {
		return exitError(err)
	}
	return r.Render(v)
}

func vacanciesDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a vacancy",
		ArgsUsage: "<vacancy-id>",
		Flags:     OutputFlags(),
		Action:    vacanciesDeleteAction,
	}
}

// DeleteResponse is the response for vacancies delete.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func vacanciesDeleteAction(c *cli.Context) error {
	id, err := requireArg(c, "vacancy-id")
	if err != nil {
		return err
	}
	r, e, err := setup(c, "vacancies")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	if err := e.backend.DeleteVacancy(c.Context, id); err != nil {
		return exitError(err)
	}
	return r.Render(DeleteResponse{ID: id, Deleted: true})
}

// setup builds the renderer and env for a command action.
func setup(c *cli.Context, feature string) (*render.Renderer, *env, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitUsage)
	}
	e, err := newEnv(c, feature)
	if err != nil {
		return nil, nil, err
	}
	return r, e, nil
}

// requireArg returns the first positional argument.
func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", cli.Exit(fmt.Sprintf("missing <%s>", name), exitUsage)
	}
	return c.Args().First(), nil
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	return isTTY(os.Stderr)
}
