// Package jobs runs scoring jobs taken from the queue.
package jobs

import (
	"context"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/logging"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/queue"
	"github.com/myrjola/hotline/internal/scoring"
	"log/slog"
	"time"
)

const (
	DefaultScoringTimeout = 2 * time.Minute
	// dequeueWait bounds each blocking dequeue so that cancellation is noticed.
	dequeueWait = 5 * time.Second
)

var errPanic = errors.NewSentinel("scoring panicked")

type SessionStore interface {
	Get(ctx context.Context, id string) (*models.SessionRow, error)
	Snapshot(ctx context.Context, id string) (models.SessionSnapshot, error)
	Transition(ctx context.Context, id string, from, to models.SessionStatus) error
	Fail(ctx context.Context, id string, from models.SessionStatus, reason string) error
}

type HeartStore interface {
	Get(ctx context.Context, id string) (*models.Heart, error)
}

type ScoreStore interface {
	SaveScored(ctx context.Context, score *models.Score) error
}

type Scorer interface {
	Score(ctx context.Context, in scoring.Input) (*models.Score, error)
}

// ScoringWorker scores completed sessions.
type ScoringWorker struct {
	queue    queue.Queue
	sessions SessionStore
	hearts   HeartStore
	scores   ScoreStore
	scorer   Scorer
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScoringWorker(
	q queue.Queue,
	sessions SessionStore,
	hearts HeartStore,
	scores ScoreStore,
	scorer Scorer,
	timeout time.Duration,
	logger *slog.Logger,
) *ScoringWorker {
	if timeout <= 0 {
		timeout = DefaultScoringTimeout
	}
	return &ScoringWorker{
		queue:    q,
		sessions: sessions,
		hearts:   hearts,
		scores:   scores,
		scorer:   scorer,
		timeout:  timeout,
		logger:   logger.With("source", "ScoringWorker"),
	}
}

// Run processes jobs until ctx is done. Failures of single jobs are logged and do not stop the worker.
func (w *ScoringWorker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Dequeue(ctx, dequeueWait)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			w.logger.LogAttrs(ctx, slog.LevelError, "dequeue scoring job", errors.SlogError(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
				continue
			}
		}
		if err = w.Process(ctx, job); err != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "scoring job failed", errors.SlogError(err))
		}
	}
}

// Process scores the session of one job.
//
// A completed or failed session moves to scoring, then to scored with the stored score. If scoring fails the
// session is marked failed so that it can be retried. Jobs for sessions in any other status are skipped.
func (w *ScoringWorker) Process(ctx context.Context, job queue.Job) (err error) {
	ctx = logging.WithSession(ctx, job.SessionID)
	row, err := w.sessions.Get(ctx, job.SessionID)
	if err != nil {
		return errors.Wrap(err, "read session")
	}
	switch row.Status {
	case models.SessionStatusCompleted, models.SessionStatusFailed:
	case models.SessionStatusPending, models.SessionStatusInProgress, models.SessionStatusScoring,
		models.SessionStatusScored, models.SessionStatusCancelled, models.SessionStatusExpired:
		w.logger.LogAttrs(ctx, slog.LevelInfo, "skipping scoring job",
			slog.String("status", string(row.Status)), slog.Int("attempt", job.Attempt))
		return nil
	}
	if err = w.sessions.Transition(ctx, row.ID, row.Status, models.SessionStatusScoring); err != nil {
		return errors.Wrap(err, "mark session scoring")
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errPanic, "score session", slog.String("panic", fmt.Sprint(r)))
		}
		if err == nil {
			return
		}
		if failErr := w.sessions.Fail(ctx, row.ID, models.SessionStatusScoring, err.Error()); failErr != nil {
			err = errors.Join(err, errors.Wrap(failErr, "mark session failed"))
		}
	}()

	score, err := w.score(ctx, row)
	if err != nil {
		return err
	}
	if err = w.scores.SaveScored(ctx, score); err != nil {
		return errors.Wrap(err, "save score")
	}
	w.logger.LogAttrs(ctx, slog.LevelInfo, "scoring job done",
		slog.String("verdict", string(score.Verdict)),
		slog.Float64("final_score", score.FinalScore),
		slog.Int("attempt", job.Attempt))
	return nil
}

func (w *ScoringWorker) score(ctx context.Context, row *models.SessionRow) (*models.Score, error) {
	heart, err := w.hearts.Get(ctx, row.HeartID)
	if err != nil {
		return nil, errors.Wrap(err, "read heart", slog.String("heart_id", row.HeartID))
	}
	snapshot, err := w.sessions.Snapshot(ctx, row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	score, err := w.scorer.Score(ctx, scoring.Input{Heart: *heart, Snapshot: snapshot, Timeline: nil})
	if err != nil {
		return nil, errors.Wrap(err, "score session")
	}
	return score, nil
}
