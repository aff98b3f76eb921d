// Command hotline runs the screening backend: the scoring worker, the stale session reaper and the status API, plus
// utilities for importing heart profiles and replaying recorded interviews.
package main

import (
	"context"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/logging"
	"github.com/spf13/cobra"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const closeTimeout = 10 * time.Second

// cli carries what every command needs before the application is opened.
type cli struct {
	logger    *slog.Logger
	level     *slog.LevelVar
	lookupEnv func(string) (string, bool)
}

func newRootCmd(c cli) *cobra.Command {
	var debug bool
	rootCmd := &cobra.Command{
		Use:           "hotline",
		Short:         "Screening interview backend",
		Long:          `Runs and maintains screening interviews between suitors and hearts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug {
				c.level.Set(slog.LevelDebug)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.AddGroup(&cobra.Group{ID: "server", Title: "Server"})
	rootCmd.AddGroup(&cobra.Group{ID: "sessions", Title: "Session operations"})
	rootCmd.AddGroup(&cobra.Group{ID: "hearts", Title: "Heart operations"})
	rootCmd.AddCommand(newServeCmd(c), newReapCmd(c), newScoreCmd(c), newReplayCmd(c), newHeartCmd(c))
	return rootCmd
}

// withApp opens the application for the duration of fn.
func (c cli) withApp(ctx context.Context, fn func(ctx context.Context, app *application) error) (err error) {
	cfg, err := loadConfig(c.lookupEnv)
	if err != nil {
		return err
	}
	app, err := newApplication(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if closeErr := app.close(closeCtx); closeErr != nil { //nolint:contextcheck // ctx may be done already
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(ctx, app)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd(cli{logger: logger, level: level, lookupEnv: os.LookupEnv})
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.LogAttrs(context.Background(), slog.LevelError, "command failed", errors.SlogError(err))
		os.Exit(1)
	}
}
