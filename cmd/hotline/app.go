package main

import (
	"context"
	"github.com/myrjola/hotline/internal/ai"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/interview"
	"github.com/myrjola/hotline/internal/jobs"
	"github.com/myrjola/hotline/internal/queue"
	"github.com/myrjola/hotline/internal/reaper"
	"github.com/myrjola/hotline/internal/replay"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/myrjola/hotline/internal/scoring"
	"github.com/myrjola/hotline/internal/sqlite"
	"github.com/myrjola/hotline/internal/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"io"
	"log/slog"
	"os"
	"time"
)

// memoryQueueCapacity bounds the in-process queue used when no Redis server is configured.
const memoryQueueCapacity = 256

type application struct {
	cfg            config
	logger         *slog.Logger
	db             *sqlite.Database
	hearts         *repositories.HeartRepository
	sessions       *repositories.SessionRepository
	scores         *repositories.ScoreRepository
	queue          queue.Queue
	tracerProvider *sdktrace.TracerProvider
}

// newApplication opens the database, the scoring queue, and the tracer provider.
func newApplication(ctx context.Context, cfg config, logger *slog.Logger) (*application, error) {
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName: "hotline",
		Enabled:     cfg.Trace,
		Writer:      os.Stderr,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new tracer provider")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger)
	if err != nil {
		return nil, errors.Join(errors.Wrap(err, "open database"), tp.Shutdown(ctx))
	}

	var q queue.Queue
	if cfg.RedisAddr != "" {
		if q, err = queue.NewRedisQueue(ctx, cfg.RedisAddr, cfg.RedisQueue, logger); err != nil {
			return nil, errors.Join(errors.Wrap(err, "open redis queue"), db.Close(), tp.Shutdown(ctx))
		}
	} else {
		logger.LogAttrs(ctx, slog.LevelDebug, "HOTLINE_REDIS_ADDR not set, using in-memory scoring queue")
		q = queue.NewMemoryQueue(memoryQueueCapacity)
	}

	return &application{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		hearts:         repositories.NewHeartRepository(db, logger),
		sessions:       repositories.NewSessionRepository(db, logger),
		scores:         repositories.NewScoreRepository(db, logger),
		queue:          q,
		tracerProvider: tp,
	}, nil
}

// close flushes spans and releases the queue and database connections.
func (app *application) close(ctx context.Context) error {
	var errs []error
	if err := app.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "shutdown tracer provider"))
	}
	if closer, ok := app.queue.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close queue"))
		}
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close database"))
	}
	return errors.Join(errs...)
}

func (app *application) reaper() *reaper.Reaper {
	return reaper.New(app.sessions, reaper.Config{
		PendingTimeout:     app.cfg.pendingTimeout(),
		MaxSessionDuration: app.cfg.maxSessionDuration(),
		TracerProvider:     app.tracerProvider,
		Now:                time.Now,
	}, app.logger)
}

func (app *application) scoringWorker() (*jobs.ScoringWorker, error) {
	if app.cfg.OpenAIAPIKey == "" {
		return nil, errMissingAPIKey
	}
	judge := ai.NewJudge(app.cfg.OpenAIAPIKey, app.cfg.OpenAIBaseURL, app.cfg.JudgeModel, app.logger)
	engine, err := scoring.NewEngine(judge, scoring.Config{
		Weights:          app.cfg.weights(),
		VerdictThreshold: app.cfg.VerdictThreshold,
		TracerProvider:   app.tracerProvider,
		Now:              time.Now,
	}, app.logger)
	if err != nil {
		return nil, errors.Wrap(err, "new scoring engine")
	}
	return jobs.NewScoringWorker(app.queue, app.sessions, app.hearts, app.scores, engine, app.cfg.ScoringTimeout,
		app.logger), nil
}

func (app *application) replayRunner(start time.Time) *replay.Runner {
	handoff := interview.NewHandoff(app.sessions, app.queue, app.logger)
	return replay.NewRunner(app.sessions, app.hearts, handoff, replay.Config{
		RambleTime:         app.cfg.rambleTime(),
		RambleWords:        app.cfg.RambleWordThreshold,
		MaxInterviewLength: app.cfg.maxInterviewLength(),
		Start:              start,
	}, app.logger)
}
