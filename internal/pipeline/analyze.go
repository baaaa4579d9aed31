package pipeline

import (
	"context"
	"path/filepath"

	"github.com/aristath/ratelens/internal/config"
	"github.com/aristath/ratelens/internal/modules/dataset"
	"github.com/aristath/ratelens/internal/modules/regression"
	"github.com/aristath/ratelens/internal/modules/series"
)

// Analysis bundles every regression estimated over one dataset.
type Analysis struct {
	Baseline *regression.Result
	Lagged   *regression.Result
	Rolling  []regression.Result
	Cross    []regression.Result
}

// BuildDataset loads the stored panel and aligns it, reusing a cached
// dataset when spec and data are unchanged. The aligned table is also
// written to data/processed for inspection.
func (p *Pipeline) BuildDataset(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := p.datasetSpec()
	panel := make(map[string]series.Series, len(p.study.Series))
	for _, ss := range p.study.Series {
		s, err := p.seriesRepo.GetSeries(ss.Name, spec.StartDate, spec.EndDate)
		if err != nil {
			return nil, err
		}
		if len(s.Obs) == 0 {
			return nil, &dataset.DataGapError{Series: ss.Name, StartDate: spec.StartDate, EndDate: spec.EndDate}
		}
		panel[ss.Name] = s
	}

	key := dataset.Key(spec, panel)
	if ds, ok := p.cache.Get(key); ok {
		return ds, nil
	}

	ds, err := p.builder.Build(panel, spec)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(key, ds); err != nil {
		p.log.Warn().Err(err).Msg("Failed to cache dataset")
	}
	csvPath := filepath.Join(p.cfg.ProcessedDir(), "dataset.csv")
	if err := ds.WriteCSV(csvPath); err != nil {
		p.log.Warn().Err(err).Str("path", csvPath).Msg("Failed to write dataset CSV")
	}
	return ds, nil
}

// Analyze estimates the configured regressions over the dataset.
func (p *Pipeline) Analyze(ctx context.Context, ds *dataset.Dataset) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := p.study.Analysis
	baselineSpec := regression.Spec{
		Name:       "baseline",
		Dependent:  cfg.Dependent,
		Regressors: cfg.Regressors,
		MinRows:    cfg.MinRows,
	}
	baseline, err := regression.Fit(ds, baselineSpec)
	if err != nil {
		return nil, err
	}
	analysis := &Analysis{Baseline: baseline}

	if lagged := p.laggedRegressors(ds, cfg.Regressors); len(lagged) > len(cfg.Regressors) {
		res, err := regression.Fit(ds, regression.Spec{
			Name:       "lagged",
			Dependent:  cfg.Dependent,
			Regressors: lagged,
			MinRows:    cfg.MinRows,
		})
		if err != nil {
			return nil, err
		}
		analysis.Lagged = res
	}

	if cfg.Rolling.Window > 0 {
		rollingSpec := baselineSpec
		rollingSpec.Name = "rolling"
		rollingSpec.MinRows = cfg.Rolling.MinRows
		rolling, err := regression.FitRolling(ds, rollingSpec, cfg.Rolling.Window, cfg.Rolling.Step)
		if err != nil {
			return nil, err
		}
		analysis.Rolling = rolling
	}

	if measures := p.rateMeasureFields(); len(measures) > 1 {
		cross, err := regression.CompareMeasures(ds, cfg.Dependent, measures, cfg.MinRows)
		if err != nil {
			return nil, err
		}
		analysis.Cross = cross
	}

	return analysis, nil
}

// datasetSpec translates the study file into a dataset build spec.
func (p *Pipeline) datasetSpec() dataset.Spec {
	inputs := make([]dataset.Input, len(p.study.Series))
	for i, ss := range p.study.Series {
		inputs[i] = dataset.Input{
			Name:      ss.Name,
			Kind:      ss.Kind,
			Transform: ss.DefaultTransform(),
		}
	}
	return dataset.Spec{
		Inputs:     inputs,
		FillPolicy: p.study.Dataset.FillPolicy,
		MinOverlap: p.study.Dataset.MinOverlap,
		Lags:       p.study.Dataset.Lags,
		VolWindow:  p.study.Dataset.VolWindow,
		StartDate:  p.study.Dataset.StartDate,
		EndDate:    p.study.Dataset.EndDate,
	}
}

// laggedRegressors extends the baseline regressors with every lag
// variant the dataset actually carries.
func (p *Pipeline) laggedRegressors(ds *dataset.Dataset, base []string) []string {
	out := append([]string{}, base...)
	seen := make(map[string]bool, len(base))
	for _, name := range base {
		seen[name] = true
	}
	for _, name := range base {
		for _, k := range p.study.Dataset.Lags {
			field := dataset.LagField(name, k)
			if seen[field] {
				continue
			}
			if _, ok := ds.Field(field); ok {
				seen[field] = true
				out = append(out, field)
			}
		}
	}
	return out
}

// rateMeasureFields returns the transformed field of every rate series,
// for the side-by-side measure comparison.
func (p *Pipeline) rateMeasureFields() []string {
	var fields []string
	for _, ss := range p.study.Series {
		if ss.Kind != config.KindRate {
			continue
		}
		fields = append(fields, dataset.TransformedField(dataset.Input{
			Name:      ss.Name,
			Kind:      ss.Kind,
			Transform: ss.DefaultTransform(),
		}))
	}
	return fields
}
