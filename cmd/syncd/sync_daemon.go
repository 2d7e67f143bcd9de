package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"archivesyncd/internal/config"
	"archivesyncd/internal/scheduler"
)

func newSyncDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync:daemon",
		Short: "Start the Scheduler loop and run until killed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			hour, minute, err := config.ParseDailyAt(d.cfg.SyncDailyAt)
			if err != nil {
				return err
			}

			sched, err := scheduler.New(d.newEngine(), scheduler.Config{
				Timezone:     d.cfg.Timezone,
				DailyHour:    hour,
				DailyMinute:  minute,
				TickInterval: d.cfg.SchedulerTick,
				RunOnStart:   d.cfg.SchedulerRunOnStart,
			}, d.logger)
			if err != nil {
				return err
			}

			d.logger.Info().
				Str("timezone", d.cfg.Timezone).
				Str("daily_at", d.cfg.SyncDailyAt).
				Msg("scheduler starting")

			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				exitCode = 1
				return err
			}
			d.logger.Info().Msg("scheduler stopped")
			return nil
		},
	}
}
