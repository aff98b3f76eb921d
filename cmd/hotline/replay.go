package main

import (
	"context"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/replay"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"os"
	"time"
)

const replayDequeueWait = time.Second

func newReplayCmd(c cli) *cobra.Command {
	var scoreNow bool
	cmd := &cobra.Command{
		Use:     "replay <file>",
		GroupID: "sessions",
		Short:   "Replay a recorded interview",
		Long: `Runs a YAML interview script through a live session and hands it off for scoring. With --score the
scoring job is processed right away instead of being left in the queue for "hotline serve".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				return replayFile(ctx, app, args[0], scoreNow, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&scoreNow, "score", false, "score the session after the replay")
	return cmd
}

func replayFile(ctx context.Context, app *application, path string, scoreNow bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open replay script", slog.String("path", path))
	}
	defer f.Close()
	script, err := replay.Parse(f)
	if err != nil {
		return errors.Wrap(err, "parse replay script", slog.String("path", path))
	}

	result, err := app.replayRunner(time.Now()).Run(ctx, script)
	if err != nil {
		return errors.Wrap(err, "replay")
	}
	snapshot := result.Snapshot
	_, _ = fmt.Fprintf(out, "session %s ended with %s after %.0fs, %d of %d questions asked\n",
		snapshot.SessionID, snapshot.EndReason, snapshot.DurationSeconds, snapshot.QuestionsAsked,
		snapshot.TotalQuestions)
	_, _ = fmt.Fprintf(out, "%d interruptions, overtime: %t\n%s\n", result.Interrupts, result.Overtime, result.Emotion)

	if !scoreNow {
		return nil
	}
	job, err := app.queue.Dequeue(ctx, replayDequeueWait)
	if err != nil {
		return errors.Wrap(err, "dequeue scoring job")
	}
	if job.SessionID != snapshot.SessionID {
		// Someone else's job; put it back for the worker.
		if err = app.queue.Enqueue(ctx, job); err != nil {
			return errors.Wrap(err, "requeue scoring job", slog.String("job_session_id", job.SessionID))
		}
	}
	return scoreSession(ctx, app, snapshot.SessionID, 1, out)
}
