package main

import (
	"context"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Import raw series files into data/raw and history.db",
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.pipeline.Fetch(ctx)
		}),
	}
}
