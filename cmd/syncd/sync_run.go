package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync:run",
		Short: "Execute exactly one run of the Sync Engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			summary, err := d.newEngine().Run(ctx)
			if err != nil {
				exitCode = 1
				return err
			}

			d.logger.Info().
				Bool("skipped_by_lock", summary.SkippedByLock).
				Int("accounts", len(summary.Accounts)).
				Msg("sync run finished")
			fmt.Println(formatRunSummary(summary))
			return nil
		},
	}
}
