package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/ratelens/internal/pipeline"
	"github.com/aristath/ratelens/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve run results and report artifacts over HTTP",
		RunE: withApp(func(ctx context.Context, a *app) error {
			job := pipeline.NewRefreshJob(a.pipeline, newArchiveService(ctx, a), a.log)

			srv := server.New(server.Config{
				Log:        a.log,
				Config:     a.cfg,
				HistoryDB:  a.historyDB,
				ResultsDB:  a.resultsDB,
				RunRepo:    a.runRepo,
				RefreshJob: job,
				Port:       a.cfg.Port,
				DevMode:    a.cfg.DevMode,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}),
	}
}
