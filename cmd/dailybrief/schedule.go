package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/dailybrief/internal/app"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/scheduler"
)

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.Scheduler.Enabled {
				logger.Warn("scheduler disabled, set scheduler.enabled: true to run on a schedule")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Each run rereads the config so edits apply without a restart.
			job := func(ctx context.Context) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				res, err := runLocked(ctx, cfg, app.RunOptions{})
				if err != nil {
					return err
				}
				logger.Info("scheduled run finished", "run_id", res.RunID, "day_dir", res.DayDir, "selected", res.Selected)
				return nil
			}

			s, err := scheduler.New(cfg.Scheduler, job)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
}
