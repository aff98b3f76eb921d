package main

import (
	"context"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/queue"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/spf13/cobra"
	"io"
	"time"
)

func newScoreCmd(c cli) *cobra.Command {
	return &cobra.Command{
		Use:     "score <session-id>",
		GroupID: "sessions",
		Short:   "Score a completed or failed session now",
		Long: `Scores the session without going through the queue. Sessions that failed scoring earlier are
retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				return scoreSession(ctx, app, args[0], 1, cmd.OutOrStdout())
			})
		},
	}
}

// scoreSession processes a scoring job for id in the foreground and prints the outcome.
func scoreSession(ctx context.Context, app *application, id string, attempt int, out io.Writer) error {
	worker, err := app.scoringWorker()
	if err != nil {
		return errors.Wrap(err, "new scoring worker")
	}
	if err = worker.Process(ctx, queue.Job{SessionID: id, EnqueuedAt: time.Now(), Attempt: attempt}); err != nil {
		return errors.Wrap(err, "process scoring job")
	}
	score, err := app.scores.GetBySessionID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		row, getErr := app.sessions.Get(ctx, id)
		if getErr != nil {
			return errors.Wrap(getErr, "read session")
		}
		_, _ = fmt.Fprintf(out, "session %s was not scored, status is %s\n", id, row.Status)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read score")
	}
	_, _ = fmt.Fprintf(out, "session %s: %s with %.2f (weighted %.2f, modifier %+.1f, threshold %.1f)\n%s\n",
		id, score.Verdict, score.FinalScore, score.WeightedTotal, score.EmotionModifier, score.VerdictThreshold,
		score.Feedback.Summary)
	return nil
}
