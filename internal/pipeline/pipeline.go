// Package pipeline runs the end-to-end analysis: import raw files,
// build the aligned dataset, estimate the regressions, generate the
// report. Stages are exposed individually so the CLI can run any prefix.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/ratelens/internal/config"
	"github.com/aristath/ratelens/internal/modules/dataset"
	"github.com/aristath/ratelens/internal/modules/report"
	"github.com/aristath/ratelens/internal/modules/series"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline wires the stages of one study together.
type Pipeline struct {
	cfg        *config.Config
	study      *config.Study
	loader     *series.Loader
	seriesRepo *series.Repository
	builder    *dataset.Builder
	cache      *dataset.Cache
	runRepo    *report.Repository
	generator  *report.Generator
	log        zerolog.Logger
}

// New creates a pipeline over the given repositories.
func New(cfg *config.Config, study *config.Study, seriesRepo *series.Repository, runRepo *report.Repository, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		study:      study,
		loader:     series.NewLoader(log),
		seriesRepo: seriesRepo,
		builder:    dataset.NewBuilder(log),
		cache:      dataset.NewCache(filepath.Join(cfg.DataDir, "cache"), log),
		runRepo:    runRepo,
		generator:  report.NewGenerator(cfg.TablesDir(), cfg.FiguresDir(), log),
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes every stage. Failed runs are recorded in results.db
// before the error is returned, so the API can surface them.
func (p *Pipeline) Run(ctx context.Context) (*report.Artifacts, error) {
	started := time.Now()
	runID := uuid.NewString()

	fail := func(err error) (*report.Artifacts, error) {
		p.recordFailure(runID, started, err)
		return nil, err
	}

	if err := p.Fetch(ctx); err != nil {
		return fail(err)
	}
	ds, err := p.BuildDataset(ctx)
	if err != nil {
		return fail(err)
	}
	analysis, err := p.Analyze(ctx, ds)
	if err != nil {
		return fail(err)
	}
	art, err := p.Report(ctx, runID, started, ds, analysis)
	if err != nil {
		return fail(err)
	}

	p.log.Info().
		Str("run_id", runID).
		Dur("elapsed", time.Since(started)).
		Msg("Pipeline run completed")
	return art, nil
}

// Report renders artifacts and records the completed run.
func (p *Pipeline) Report(ctx context.Context, runID string, started time.Time, ds *dataset.Dataset, analysis *Analysis) (*report.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := report.Run{
		ID:        runID,
		Study:     p.study.Name,
		CreatedAt: started,
		Rows:      ds.Len(),
		StartDate: ds.Dates[0],
		EndDate:   ds.Dates[ds.Len()-1],
		Status:    report.StatusCompleted,
	}

	in := report.Input{
		Run:       run,
		StudyPath: p.cfg.StudyPath,
		Dataset:   ds,
		Baseline:  analysis.Baseline,
		Lagged:    analysis.Lagged,
		Rolling:   analysis.Rolling,
		Cross:     analysis.Cross,
	}
	art, err := p.generator.Generate(in)
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	run.SummaryPath = art.SummaryPath
	in.Run = run
	if err := p.runRepo.SaveRun(run, in.Results()); err != nil {
		return nil, err
	}
	return art, nil
}

func (p *Pipeline) recordFailure(runID string, started time.Time, cause error) {
	run := report.Run{
		ID:        runID,
		Study:     p.study.Name,
		CreatedAt: started,
		Status:    report.StatusFailed,
		Error:     cause.Error(),
	}

	var gap *dataset.DataGapError
	var align *dataset.AlignmentError
	event := p.log.Error().Err(cause).Str("run_id", runID)
	switch {
	case errors.As(cause, &gap):
		event.Str("series", gap.Series).Msg("Pipeline run failed: data gap")
	case errors.As(cause, &align):
		event.Int("overlap", align.Overlap).Msg("Pipeline run failed: insufficient overlap")
	default:
		event.Msg("Pipeline run failed")
	}

	if err := p.runRepo.SaveRun(run, nil); err != nil {
		p.log.Error().Err(err).Str("run_id", runID).Msg("Failed to record failed run")
	}
}
