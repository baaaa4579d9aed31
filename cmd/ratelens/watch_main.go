package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aristath/ratelens/internal/pipeline"
	"github.com/aristath/ratelens/internal/scheduler"
)

func watchCmd() *cobra.Command {
	var runImmediately bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the study fresh on the configured cron schedule",
		RunE: withApp(func(ctx context.Context, a *app) error {
			job := pipeline.NewRefreshJob(a.pipeline, newArchiveService(ctx, a), a.log)

			sched := scheduler.New(a.log)
			if err := sched.AddJob(a.study.Schedule, job); err != nil {
				return err
			}

			if runImmediately {
				sched.RunNow(job)
			}

			sched.Start()
			defer sched.Stop()

			a.log.Info().Str("schedule", a.study.Schedule).Msg("Watching study")
			<-ctx.Done()
			return nil
		}),
	}

	cmd.Flags().BoolVar(&runImmediately, "now", false, "run once immediately, then follow the schedule")
	return cmd
}
