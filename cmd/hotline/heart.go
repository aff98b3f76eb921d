package main

import (
	"context"
	"fmt"
	"github.com/myrjola/hotline/internal/errors"
	"github.com/myrjola/hotline/internal/heartfile"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"time"
)

func newHeartCmd(c cli) *cobra.Command {
	heartCmd := &cobra.Command{
		Use:     "heart",
		GroupID: "hearts",
		Short:   "Manage heart profiles",
	}
	heartCmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import a heart profile from YAML",
		Long:  `Creates or replaces the heart and its screening questions.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open heart profile", slog.String("path", args[0]))
				}
				defer f.Close()
				heart, err := heartfile.Parse(f, time.Now())
				if err != nil {
					return errors.Wrap(err, "parse heart profile", slog.String("path", args[0]))
				}
				if err = app.hearts.Upsert(ctx, heart); err != nil {
					return errors.Wrap(err, "save heart")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported heart %s with %d questions\n",
					heart.ID, len(heart.Questions))
				return nil
			})
		},
	})
	return heartCmd
}
