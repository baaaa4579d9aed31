package main

import (
	"context"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: fetch, build, analyze, report",
		RunE: withApp(func(ctx context.Context, a *app) error {
			art, err := a.pipeline.Run(ctx)
			if err != nil {
				return err
			}
			a.log.Info().Str("summary", art.SummaryPath).Msg("Run completed")
			return nil
		}),
	}
}
