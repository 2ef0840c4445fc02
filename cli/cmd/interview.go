package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/render"
	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/retry"
	"github.com/justapithecus/screener/session"
	"github.com/justapithecus/screener/stream"
	"github.com/justapithecus/screener/transcript"
	"github.com/justapithecus/screener/types"
)

// InterviewReport is the response for interview generate and feedback.
type InterviewReport struct {
	SessionID  string            `json:"session_id" yaml:"session_id"`
	VacancyID  string            `json:"vacancy_id,omitempty" yaml:"vacancy_id,omitempty"`
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	Questions  int               `json:"questions" yaml:"questions"`
	Interview  *types.Interview  `json:"interview,omitempty" yaml:"interview,omitempty" table:"-"`
	Transcript []transcript.Line `json:"transcript,omitempty" yaml:"transcript,omitempty" table:"-"`
}

// QuestionRow is one question in table output.
type QuestionRow struct {
	Section  string `json:"section"`
	ID       string `json:"id"`
	Question string `json:"question"`
}

// InterviewCommand returns the interview command with subcommands.
func InterviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "interview",
		Usage: "Generate and revise pre-screening interviews",
		Subcommands: []*cli.Command{
			interviewGenerateCommand(),
			interviewFeedbackCommand(),
			interviewReorderCommand(),
		},
	}
}

func interviewGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate an interview for a vacancy (streams progress to stderr)",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "vacancy", Aliases: []string{"v"}, Usage: "Vacancy ID"},
			&cli.StringFlag{Name: "text", Usage: "Vacancy text"},
			&cli.StringFlag{Name: "file", Usage: "Read vacancy text from a file (- for stdin)"},
			&cli.StringFlag{Name: "session", Usage: "Regenerate within an existing session"},
		),
		Action: interviewGenerateAction,
	}
}

func interviewGenerateAction(c *cli.Context) error {
	text, err := vacancyText(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	vacancyID := c.String("vacancy")
	if vacancyID == "" && text == "" {
		return cli.Exit("set --vacancy or provide vacancy text with --text/--file", exitUsage)
	}

	r, e, err := setup(c, "generate")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for interview commands", exitUsage)
	}

	iv := session.NewInterview(e.backend, session.InterviewConfig{
		VacancyID: vacancyID,
		SessionID: c.String("session"),
		Logger:    e.logger,
		Metrics:   e.metrics,
	})

	res, err := iv.Generate(c.Context, text, progressPrinter(e.stderr))
	if err != nil {
		return exitError(err)
	}
	return renderInterview(r, newInterviewReport(iv, vacancyID, res))
}

func interviewFeedbackCommand() *cli.Command {
	return &cli.Command{
		Name:  "feedback",
		Usage: "Send revision feedback on a session's interview (retried on transient failures)",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session ID", Required: true},
			&cli.StringFlag{Name: "vacancy", Aliases: []string{"v"}, Usage: "Vacancy ID (for logging)"},
			&cli.StringSliceFlag{Name: "message", Aliases: []string{"m"}, Usage: "Feedback message; repeat to send several in order", Required: true},
		),
		Action: interviewFeedbackAction,
	}
}

func interviewFeedbackAction(c *cli.Context) error {
	messages := nonEmpty(c.StringSlice("message"))
	if len(messages) == 0 {
		return cli.Exit("--message must not be empty", exitUsage)
	}

	r, e, err := setup(c, "feedback")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for interview commands", exitUsage)
	}

	iv := session.NewInterview(e.backend, session.InterviewConfig{
		VacancyID:  c.String("vacancy"),
		SessionID:  c.String("session"),
		Schedule:   e.retrySchedule(),
		OnProgress: retryPrinter(e.stderr),
		Logger:     e.logger,
		Metrics:    e.metrics,
	})

	var res *types.InterviewResult
	for i, msg := range messages {
		res, err = iv.Feedback(c.Context, msg, progressPrinter(e.stderr))
		if err != nil {
			return exitError(err)
		}
		e.logger.Sugar().Debugf("feedback %d/%d applied", i+1, len(messages))
	}
	return renderInterview(r, newInterviewReport(iv, c.String("vacancy"), res))
}

func interviewReorderCommand() *cli.Command {
	return &cli.Command{
		Name:  "reorder",
		Usage: "Persist a new question order",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session ID", Required: true},
			&cli.StringSliceFlag{Name: "question", Usage: "Question IDs in the new order (repeat or comma-separate)", Required: true},
		),
		Action: interviewReorderAction,
	}
}

func interviewReorderAction(c *cli.Context) error {
	ids := nonEmpty(c.StringSlice("question"))
	if len(ids) == 0 {
		return cli.Exit("--question must list at least one question ID", exitUsage)
	}

	r, e, err := setup(c, "reorder")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	interview, err := e.backend.ReorderQuestions(c.Context, types.ReorderRequest{
		SessionID:   c.String("session"),
		QuestionIDs: ids,
	})
	if err != nil {
		return exitError(err)
	}
	return renderInterview(r, InterviewReport{
		SessionID: c.String("session"),
		Questions: interview.QuestionCount(),
		Interview: interview,
	})
}

func newInterviewReport(iv *session.Interview, vacancyID string, res *types.InterviewResult) InterviewReport {
	return InterviewReport{
		SessionID:  iv.SessionID(),
		VacancyID:  vacancyID,
		Message:    res.Message,
		Questions:  res.Interview.QuestionCount(),
		Interview:  res.Interview,
		Transcript: iv.Transcript().Messages(),
	}
}

// renderInterview renders the report; table output adds one row per question.
func renderInterview(r *render.Renderer, rep InterviewReport) error {
	if err := r.Render(rep); err != nil {
		return err
	}
	if r.Format() != render.FormatTable || rep.Interview == nil {
		return nil
	}
	fmt.Fprintln(r.Writer())
	return r.Render(questionRows(rep.Interview))
}

func questionRows(iv *types.Interview) []QuestionRow {
	rows := make([]QuestionRow, 0, iv.QuestionCount())
	for _, q := range iv.KnockoutQuestions {
		rows = append(rows, QuestionRow{Section: "knockout", ID: q.ID, Question: q.Question})
	}
	for _, q := range iv.QualificationQuestions {
		rows = append(rows, QuestionRow{Section: "qualification", ID: q.ID, Question: q.Question})
	}
	return rows
}

// progressPrinter prints status labels to w as they arrive.
func progressPrinter(w io.Writer) stream.Handler {
	return func(ev *types.StreamEvent) {
		if ev.Type == types.EventTypeStatus && ev.Message != "" {
			fmt.Fprintf(w, "… %s\n", ev.Message)
		}
	}
}

// retryPrinter surfaces visible retries on w. The failure message itself is
// printed once, on exit.
func retryPrinter(w io.Writer) retry.ProgressFunc {
	return func(p retry.Progress) {
		if p.Phase == retry.PhaseRetrying {
			fmt.Fprintf(w, "! %s\n", p.Message)
		}
	}
}

// vacancyText reads --text or --file.
func vacancyText(c *cli.Context) (string, error) {
	text, file := c.String("text"), c.String("file")
	if text != "" && file != "" {
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	}
	if file == "" {
		return strings.TrimSpace(text), nil
	}

	var data []byte
	var err error
	if file == "-" {
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		data, err = io.ReadAll(reader)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("cannot read vacancy text: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
