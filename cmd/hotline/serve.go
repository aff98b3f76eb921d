package main

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/pprofserver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"time"
)

const optimizeInterval = 24 * time.Hour

func newServeCmd(c cli) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		GroupID: "server",
		Short:   "Run the scoring worker, the reaper and the status API",
		Long: `Runs until interrupted. The scoring worker consumes the scoring queue, the reaper expires abandoned
sessions every HOTLINE_REAPER_INTERVAL, and the status API listens on HOTLINE_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), run)
		},
	}
}

// run serves until ctx is done or one of the components fails.
func run(ctx context.Context, app *application) error {
	worker, err := app.scoringWorker()
	if err != nil {
		return errors.Wrap(err, "new scoring worker")
	}
	reaper := app.reaper()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reaper.Run(ctx, app.cfg.ReaperInterval)
		return nil
	})
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		app.db.RunOptimizer(ctx, optimizeInterval)
		return nil
	})
	g.Go(func() error {
		return app.configureAndStartServer(ctx, app.cfg.Addr)
	})
	if app.cfg.PprofPort != "" {
		g.Go(func() error {
			return pprofserver.Run(ctx, app.cfg.PprofPort, app.logger)
		})
	}
	if err = g.Wait(); err != nil {
		return errors.Wrap(err, "serve")
	}
	return nil
}
