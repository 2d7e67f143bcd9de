package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"archivesyncd/internal/ops"
)

func newHealthCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health:check",
		Short: "Probe the source adapter and sink adapter, exiting non-zero on failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			if len(d.cfg.SourceUsers) == 0 {
				exitCode = 1
				return fmt.Errorf("health:check requires at least one SOURCE_USERS entry")
			}

			// The two probes are independent collaborators with no ordering
			// requirement between them (unlike the Sync Engine's per-account
			// pipeline, which spec.md §5 requires to stay strictly
			// sequential), so they run concurrently via errgroup.
			var sourceHint string
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := d.source.HealthCheck(gctx, d.cfg.SourceUsers[0]); err != nil {
					sourceHint = ops.AuthFailureHint(err)
					return fmt.Errorf("source health check failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				if err := d.sink.HealthCheck(gctx); err != nil {
					return fmt.Errorf("sink health check failed: %w", err)
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				exitCode = 1
				if sourceHint != "" {
					fmt.Println(sourceHint)
				}
				return err
			}

			fmt.Println("ok: source and sink are healthy")
			return nil
		},
	}
}
