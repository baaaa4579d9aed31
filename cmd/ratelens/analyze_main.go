package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Estimate the regressions and generate the report",
		Long:  "analyze builds (or reuses) the dataset, estimates the configured\nregressions and writes tables, figures and summary.md.",
		RunE: withApp(func(ctx context.Context, a *app) error {
			ds, err := a.pipeline.BuildDataset(ctx)
			if err != nil {
				return err
			}
			analysis, err := a.pipeline.Analyze(ctx, ds)
			if err != nil {
				return err
			}
			art, err := a.pipeline.Report(ctx, uuid.NewString(), time.Now(), ds, analysis)
			if err != nil {
				return err
			}
			a.log.Info().Str("summary", art.SummaryPath).Msg("Report written")
			return nil
		}),
	}
}
