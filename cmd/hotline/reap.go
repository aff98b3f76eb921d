package main

import (
	"context"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/spf13/cobra"
)

func newReapCmd(c cli) *cobra.Command {
	return &cobra.Command{
		Use:     "reap",
		GroupID: "sessions",
		Short:   "Expire abandoned sessions once",
		Long:    `Runs a single reaper sweep, for use from an external scheduler such as cron.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				result, err := app.reaper().Sweep(ctx)
				if err != nil {
					return errors.Wrap(err, "sweep")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "expired %d pending and %d in-progress sessions\n",
					result.ExpiredPending, result.ExpiredInProgress)
				return nil
			})
		},
	}
}
