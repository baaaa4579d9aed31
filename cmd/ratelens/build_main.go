package main

import (
	"context"

	"github.com/spf13/cobra"
)

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Align stored series into the regression-ready dataset",
		RunE: withApp(func(ctx context.Context, a *app) error {
			ds, err := a.pipeline.BuildDataset(ctx)
			if err != nil {
				return err
			}
			a.log.Info().
				Int("rows", ds.Len()).
				Str("first_date", ds.Dates[0]).
				Str("last_date", ds.Dates[ds.Len()-1]).
				Msg("Dataset ready")
			return nil
		}),
	}
}
