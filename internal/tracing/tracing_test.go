package tracing_test

import (
	"bytes"
	"context"
	"github.com/myrjola/hotline/internal/testhelpers"
	"github.com/myrjola/hotline/internal/tracing"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		enabled  bool
		wantSpan bool
	}{
		{name: "exports when enabled", enabled: true, wantSpan: true},
		{name: "drops when disabled", enabled: false, wantSpan: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tp, err := tracing.NewProvider(ctx, tracing.Config{
				ServiceName: "hotline-test",
				Enabled:     tt.enabled,
				Writer:      &buf,
			}, testhelpers.NewLogger(io.Discard))
			require.NoError(t, err)

			_, span := tp.Tracer("test").Start(ctx, "reaper.Sweep")
			span.End()
			require.NoError(t, tp.Shutdown(ctx))

			if tt.wantSpan {
				require.Contains(t, buf.String(), `"Name":"reaper.Sweep"`)
				require.Contains(t, buf.String(), "hotline-test")
			} else {
				require.Empty(t, buf.String())
			}
		})
	}
}
