package reaper_test

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/models"
	"github.com/myrjola/hotline/internal/reaper"
	"github.com/myrjola/hotline/internal/repositories"
	"github.com/myrjola/hotline/internal/sqlite"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"io"
	"testing"
	"time"
)

var t0 = time.Date(2026, time.February, 14, 19, 0, 0, 0, time.UTC)

func TestReaper_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	dbs, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbs.Close() })

	hearts := repositories.NewHeartRepository(dbs, logger)
	require.NoError(t, hearts.Upsert(ctx, models.Heart{ID: "heart-1", DisplayName: "Alex", CreatedAt: t0})) //nolint:exhaustruct // test
	sessions := repositories.NewSessionRepository(dbs, logger)

	clock := testhelpers.NewClock(t0)
	recorder := tracetest.NewSpanRecorder()
	r := reaper.New(sessions, reaper.Config{
		PendingTimeout:     5 * time.Minute,
		MaxSessionDuration: 30 * time.Minute,
		TracerProvider:     sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		Now:                clock.Now,
	}, logger)

	pending, err := sessions.Create(ctx, "heart-1", t0)
	require.NoError(t, err)
	live, err := sessions.Create(ctx, "heart-1", t0)
	require.NoError(t, err)
	require.NoError(t, sessions.Start(ctx, live.ID, t0.Add(time.Minute)))

	result, err := r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, reaper.Result{ExpiredPending: 0, ExpiredInProgress: 0}, result)

	clock.Advance(6 * time.Minute)
	result, err = r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, reaper.Result{ExpiredPending: 1, ExpiredInProgress: 0}, result)

	clock.Advance(30 * time.Minute)
	result, err = r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, reaper.Result{ExpiredPending: 0, ExpiredInProgress: 1}, result)

	result, err = r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, reaper.Result{ExpiredPending: 0, ExpiredInProgress: 0}, result, "sweeps are idempotent")

	for id, reason := range map[string]models.EndReason{
		pending.ID: models.EndReasonConnectionTimeout,
		live.ID:    models.EndReasonMaxDurationExceeded,
	} {
		row, getErr := sessions.Get(ctx, id)
		require.NoError(t, getErr)
		require.Equal(t, models.SessionStatusExpired, row.Status)
		require.Equal(t, reason, row.EndReason)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	require.Equal(t, "reaper.Sweep", spans[0].Name())
}

type failingStore struct{}

func (failingStore) ExpireStale(context.Context, time.Time, time.Duration, time.Duration) (
	repositories.ExpiredSessions, error) {
	return repositories.ExpiredSessions{}, errors.NewSentinel("database is locked")
}

func TestReaper_Sweep_error(t *testing.T) {
	t.Parallel()
	r := reaper.New(failingStore{}, reaper.Config{}, testhelpers.NewLogger(io.Discard)) //nolint:exhaustruct // defaults
	_, err := r.Sweep(context.Background())
	require.Error(t, err)
}

func TestReaper_Run_stopsWithContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	r := reaper.New(failingStore{}, reaper.Config{}, testhelpers.NewLogger(io.Discard)) //nolint:exhaustruct // defaults
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
