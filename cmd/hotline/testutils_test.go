package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// lookupEnv returns a lookup function serving env and falling back to the defaults.
func lookupEnv(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func newTestApp(t *testing.T, env map[string]string) *application {
	t.Helper()
	ctx := context.Background()
	merged := map[string]string{
		"HOTLINE_SQLITE_URL": ":memory:",
		"HOTLINE_PPROF_PORT": "",
		"HOTLINE_ADDR":       "localhost:0",
	}
	for k, v := range env {
		merged[k] = v
	}
	cfg, err := loadConfig(lookupEnv(merged))
	require.NoError(t, err)
	app, err := newApplication(ctx, cfg, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.close(context.Background()) })
	return app
}

// newFakeJudge serves chat completions that always answer with judgment.
func newFakeJudge(t *testing.T, judgment string) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1771095900,
		"model":   "gpt-4o-2024-08-06",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": judgment},
		}},
		"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
	})
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func judgeEnv(server *httptest.Server) map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":  "test-key",
		"OPENAI_BASE_URL": fmt.Sprintf("%s/v1", server.URL),
	}
}
