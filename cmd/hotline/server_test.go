package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/logging"
	"github.com/myrjola/hotline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				select {
				case addrCh <- a.Value.String():
				default:
				}
			}
			return a
		},
	})))

	judge := newFakeJudge(t, `{}`)
	env := judgeEnv(judge)
	env["HOTLINE_SQLITE_URL"] = ":memory:"
	env["HOTLINE_ADDR"] = "localhost:0"
	env["HOTLINE_PPROF_PORT"] = ""
	cfg, err := loadConfig(lookupEnv(env))
	require.NoError(t, err)
	app, err := newApplication(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.close(context.Background()) })

	done := make(chan error, 1)
	go func() { done <- run(ctx, app) }()

	select {
	case addr := <-addrCh:
		require.NoError(t, waitForReady(ctx, fmt.Sprintf("http://%s/healthy", addr)))
	case err = <-done:
		t.Fatalf("server stopped before it was ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_missingAPIKey(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)
	err := run(context.Background(), app)
	require.ErrorIs(t, err, errMissingAPIKey)
}

func TestRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	app := newTestApp(t, nil)
	require.NoError(t, app.hearts.Upsert(ctx, models.Heart{ID: "alex", DisplayName: "Alex", CreatedAt: time.Now()})) //nolint:exhaustruct // test
	row, err := app.sessions.Create(ctx, "alex", time.Now())
	require.NoError(t, err)
	handler := app.routes()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		rec := get("/healthy")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	})

	t.Run("session status", func(t *testing.T) {
		t.Parallel()
		rec := get("/api/sessions/" + row.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var got sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, row.ID, got.ID)
		require.Equal(t, "alex", got.HeartID)
		require.Equal(t, models.SessionStatusPending, got.Status)
		require.Nil(t, got.StartedAt)
		require.Nil(t, got.EndedAt)
	})

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "unknown session", path: "/api/sessions/nope", want: http.StatusNotFound},
		{name: "score not ready", path: "/api/sessions/" + row.ID + "/score", want: http.StatusNotFound},
		{name: "unknown route", path: "/api/hearts", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, get(tt.path).Code)
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, nil)
	handler := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))
}
