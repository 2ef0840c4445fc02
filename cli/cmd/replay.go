package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/render"
	"github.com/justapithecus/screener/cli/tui"
	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/record"
	"github.com/justapithecus/screener/transcript"
	"github.com/justapithecus/screener/types"
)

// ReplayReport is the response for the replay command.
type ReplayReport struct {
	File      string                  `json:"file" yaml:"file"`
	Feature   string                  `json:"feature" yaml:"feature"`
	Events    int                     `json:"events" yaml:"events"`
	SessionID string                  `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Outcome   types.SimulationOutcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Turns     int                     `json:"turns,omitempty" yaml:"turns,omitempty"`
	LastError string                  `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Lines     []transcript.Line       `json:"lines" yaml:"lines" table:"-"`
}

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Fold a recorded event stream back into a transcript",
		ArgsUsage: "<recording.msgpack>",
		Flags:     OutputFlags(),
		Action:    replayAction,
	}
}

func replayAction(c *cli.Context) error {
	path, err := requireArg(c, "recording")
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open recording: %v", err), exitUsage)
	}
	defer iox.DiscardClose(f)

	report, err := replay(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s: %v", path, err), exitUsage)
	}
	report.File = filepath.Base(path)

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewTranscript, &tui.TranscriptData{
			Title:   fmt.Sprintf("Replay · %s (%s)", report.File, report.Feature),
			Lines:   report.Lines,
			Summary: replaySummary(report),
		})
	}
	if r.Format() == render.FormatTable {
		printLines(r.Writer(), report.Lines)
	}
	return r.Render(report)
}

// replay folds every entry of a recording. Simulation recordings go through
// the simulation folder, generate and feedback recordings through the
// feedback folder.
func replay(rd io.Reader) (*ReplayReport, error) {
	entries, err := record.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	report := &ReplayReport{Events: len(entries), Lines: []transcript.Line{}}
	if len(entries) == 0 {
		return report, nil
	}
	report.Feature = entries[0].Feature

	if report.Feature == "simulate" {
		folder := transcript.NewSimulationFolder()
		for _, entry := range entries {
			ev, err := entry.Event()
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", entry.Seq, err)
			}
			if ev.Type == types.EventTypeError {
				report.LastError = ev.Message
			}
			folder.Apply(ev)
		}
		report.Lines = folder.Lines()
		if res := folder.Result(); res != nil {
			report.SessionID = res.SessionID
			report.Outcome = res.Outcome
			report.Turns = res.TotalTurns
		}
		return report, nil
	}

	folder := transcript.NewFeedbackFolder()
	for _, entry := range entries {
		ev, err := entry.Event()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", entry.Seq, err)
		}
		folder.Apply(ev)
	}
	report.Lines = folder.Messages()
	report.SessionID = folder.SessionID()
	report.LastError = folder.LastError()
	return report, nil
}

func replaySummary(rep *ReplayReport) string {
	switch {
	case rep.LastError != "":
		return "error: " + rep.LastError
	case rep.Outcome != "":
		return fmt.Sprintf("%s after %d turns", rep.Outcome, rep.Turns)
	default:
		return fmt.Sprintf("%d events", rep.Events)
	}
}

func printLines(w io.Writer, lines []transcript.Line) {
	for _, l := range lines {
		speaker := l.Speaker
		if speaker == "" {
			speaker = string(l.Side)
		}
		fmt.Fprintf(w, "%s: %s\n", speaker, l.Text)
	}
	if len(lines) > 0 {
		fmt.Fprintln(w)
	}
}
