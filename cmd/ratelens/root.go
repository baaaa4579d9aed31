package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/ratelens/internal/config"
	"github.com/aristath/ratelens/internal/database"
	"github.com/aristath/ratelens/internal/modules/report"
	"github.com/aristath/ratelens/internal/modules/series"
	"github.com/aristath/ratelens/internal/pipeline"
	"github.com/aristath/ratelens/pkg/logger"
)

var (
	flagConfig   string
	flagLogLevel string
)

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "ratelens",
		Short:         "Equity returns vs interest rate changes, end to end",
		Long:          "ratelens imports raw market data files, aligns them without look-ahead,\nestimates the configured regressions and generates report artifacts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the YAML study file (default $RATELENS_STUDY or study.yaml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(fetchCmd())
	root.AddCommand(buildCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(runCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(archiveCmd())

	return root.ExecuteContext(ctx)
}

// app holds everything a command needs wired up.
type app struct {
	cfg       *config.Config
	study     *config.Study
	log       zerolog.Logger
	historyDB *database.DB
	resultsDB *database.DB
	runRepo   *report.Repository
	pipeline  *pipeline.Pipeline
}

// newApp loads configuration, opens both databases and wires the pipeline.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagConfig != "" {
		cfg.StudyPath = flagConfig
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode || isTerminal(),
	})
	logger.SetGlobalLogger(log)

	study, err := config.LoadStudy(cfg.StudyPath)
	if err != nil {
		return nil, err
	}

	historyDB, err := database.New(database.Config{Path: cfg.HistoryDBPath(), Name: "history"})
	if err != nil {
		return nil, err
	}
	resultsDB, err := database.New(database.Config{Path: cfg.ResultsDBPath(), Name: "results"})
	if err != nil {
		historyDB.Close()
		return nil, err
	}

	seriesRepo := series.NewRepository(historyDB.Conn(), log)
	if err := seriesRepo.EnsureSchema(); err != nil {
		return nil, closeAll(err, historyDB, resultsDB)
	}
	runRepo := report.NewRepository(resultsDB.Conn(), log)
	if err := runRepo.EnsureSchema(); err != nil {
		return nil, closeAll(err, historyDB, resultsDB)
	}

	return &app{
		cfg:       cfg,
		study:     study,
		log:       log,
		historyDB: historyDB,
		resultsDB: resultsDB,
		runRepo:   runRepo,
		pipeline:  pipeline.New(cfg, study, seriesRepo, runRepo, log),
	}, nil
}

// Close releases the database handles.
func (a *app) Close() {
	if err := a.historyDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close history database")
	}
	if err := a.resultsDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close results database")
	}
}

func closeAll(err error, dbs ...*database.DB) error {
	for _, db := range dbs {
		db.Close()
	}
	return err
}

func isTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// withApp wraps a command body with app setup and teardown.
func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}
