// Package reaper expires interview sessions that were abandoned before or during the interview.
package reaper

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/repositories"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
	"time"
)

const (
	DefaultPendingTimeout     = 5 * time.Minute
	DefaultMaxSessionDuration = 30 * time.Minute
	DefaultInterval           = 5 * time.Minute
)

// Store expires stale sessions in one atomic batch.
type Store interface {
	ExpireStale(ctx context.Context, now time.Time, pendingTimeout, maxDuration time.Duration) (
		repositories.ExpiredSessions, error)
}

type Config struct {
	PendingTimeout     time.Duration
	MaxSessionDuration time.Duration
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result counts the sessions expired by one sweep.
type Result struct {
	ExpiredPending    int
	ExpiredInProgress int
}

type Reaper struct {
	store          Store
	pendingTimeout time.Duration
	maxDuration    time.Duration
	tracer         trace.Tracer
	now            func() time.Time
	logger         *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Reaper {
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = DefaultPendingTimeout
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = DefaultMaxSessionDuration
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reaper{
		store:          store,
		pendingTimeout: cfg.PendingTimeout,
		maxDuration:    cfg.MaxSessionDuration,
		tracer:         cfg.TracerProvider.Tracer("github.com/myrjola/hotline/internal/reaper"),
		now:            cfg.Now,
		logger:         logger.With("source", "Reaper"),
	}
}

// Sweep expires pending sessions that never connected and in-progress sessions that overran the maximum duration.
//
// Either every match of the sweep is expired or none is.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "reaper.Sweep")
	defer span.End()

	expired, err := r.store.ExpireStale(ctx, r.now(), r.pendingTimeout, r.maxDuration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		return Result{}, errors.Wrap(err, "expire stale sessions")
	}
	result := Result{
		ExpiredPending:    len(expired.Pending),
		ExpiredInProgress: len(expired.InProgress),
	}
	span.SetAttributes(
		attribute.Int("reaper.expired_pending", result.ExpiredPending),
		attribute.Int("reaper.expired_in_progress", result.ExpiredInProgress),
	)

	for _, id := range expired.Pending {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "expired pending session", slog.String("session_id", id))
	}
	for _, id := range expired.InProgress {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "expired in-progress session", slog.String("session_id", id))
	}
	level := slog.LevelDebug
	if result.ExpiredPending+result.ExpiredInProgress > 0 {
		level = slog.LevelInfo
	}
	r.logger.LogAttrs(ctx, level, "reaper sweep done",
		slog.Int("expired_pending", result.ExpiredPending),
		slog.Int("expired_in_progress", result.ExpiredInProgress))
	return result, nil
}

// Run sweeps once per interval until ctx is done. A failed sweep is logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "reaper sweep failed", errors.SlogError(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			continue
		}
	}
}
