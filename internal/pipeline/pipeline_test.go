package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/ratelens/internal/config"
	"github.com/aristath/ratelens/internal/modules/dataset"
	"github.com/aristath/ratelens/internal/modules/report"
	"github.com/aristath/ratelens/internal/modules/series"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		DataDir:    filepath.Join(base, "data"),
		ReportsDir: filepath.Join(base, "reports"),
	}
}

func testStudy() *config.Study {
	return &config.Study{
		Name: "equity-rates",
		Series: []config.SeriesSpec{
			{Name: "spx", Kind: config.KindEquity, File: "spx.csv"},
			{Name: "ust10y", Kind: config.KindRate, File: "ust10y.csv"},
			{Name: "ust2y", Kind: config.KindRate, File: "ust2y.csv"},
		},
		Dataset: config.DatasetSpec{
			FillPolicy: config.FillDrop,
			MinOverlap: 5,
			Lags:       []int{1},
		},
		Analysis: config.AnalysisSpec{
			Dependent:  "ret_spx",
			Regressors: []string{"d_ust10y"},
			MinRows:    5,
			Rolling:    config.RollingSpec{Window: 6, Step: 2, MinRows: 4},
		},
	}
}

// writeSourceCSV writes n consecutive daily rows starting 2024-01-02.
func writeSourceCSV(t *testing.T, dir, name string, n int, value func(i int) float64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))

	var b strings.Builder
	b.WriteString("date,value\n")
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), value(i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0644))
}

func setupPipeline(t *testing.T, cfg *config.Config, study *config.Study) (*Pipeline, *report.Repository) {
	t.Helper()

	historyDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { historyDB.Close() })
	seriesRepo := series.NewRepository(historyDB, zerolog.Nop())
	require.NoError(t, seriesRepo.EnsureSchema())

	resultsDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { resultsDB.Close() })
	runRepo := report.NewRepository(resultsDB, zerolog.Nop())
	require.NoError(t, runRepo.EnsureSchema())

	return New(cfg, study, seriesRepo, runRepo, zerolog.Nop()), runRepo
}

func seedRawFiles(t *testing.T, cfg *config.Config, n int) {
	t.Helper()
	writeSourceCSV(t, cfg.RawDir(), "spx.csv", n, func(i int) float64 {
		return 100 * math.Exp(0.001*float64(i)+0.005*math.Sin(float64(i)))
	})
	writeSourceCSV(t, cfg.RawDir(), "ust10y.csv", n, func(i int) float64 {
		return 4.0 + 0.02*math.Sin(0.7*float64(i))
	})
	writeSourceCSV(t, cfg.RawDir(), "ust2y.csv", n, func(i int) float64 {
		return 4.5 + 0.03*math.Cos(0.5*float64(i))
	})
}

func TestPipelineRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	study := testStudy()
	p, runRepo := setupPipeline(t, cfg, study)
	seedRawFiles(t, cfg, 14)

	art, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, art.SummaryPath)
	assert.FileExists(t, filepath.Join(cfg.TablesDir(), "coefficients.csv"))
	assert.FileExists(t, filepath.Join(cfg.TablesDir(), "rolling.csv"))
	assert.FileExists(t, filepath.Join(cfg.ProcessedDir(), "dataset.csv"))

	runs, err := runRepo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.StatusCompleted, runs[0].Status)
	assert.Equal(t, "equity-rates", runs[0].Study)
	// 14 input dates, first row dropped by differencing.
	assert.Equal(t, 13, runs[0].Rows)

	_, results, err := runRepo.GetRun(runs[0].ID)
	require.NoError(t, err)
	specs := make(map[string]int)
	for _, res := range results {
		specs[res.Spec]++
	}
	assert.Equal(t, 1, specs["baseline"])
	assert.Equal(t, 1, specs["lagged"])
	assert.Equal(t, 1, specs["cross_d_ust10y"])
	assert.Equal(t, 1, specs["cross_d_ust2y"])
	// ceil((13-6)/2)+1 rolling windows.
	assert.Equal(t, 5, specs["rolling"])
}

func TestPipelineFetchStagesConfiguredSources(t *testing.T) {
	cfg := testConfig(t)
	study := testStudy()

	ratesDir := t.TempDir()
	equityDir := t.TempDir()
	cfg.RatesSourcePath = ratesDir
	cfg.EquitySourcePath = equityDir
	writeSourceCSV(t, equityDir, "spx.csv", 10, func(i int) float64 { return 100 + float64(i) })
	writeSourceCSV(t, ratesDir, "ust10y.csv", 10, func(i int) float64 { return 4.0 + 0.01*float64(i) })
	writeSourceCSV(t, ratesDir, "ust2y.csv", 10, func(i int) float64 { return 4.5 - 0.01*float64(i) })

	p, _ := setupPipeline(t, cfg, study)
	require.NoError(t, p.Fetch(context.Background()))

	// Files are copied under data/raw and observations land in history.db.
	assert.FileExists(t, filepath.Join(cfg.RawDir(), "spx.csv"))
	assert.FileExists(t, filepath.Join(cfg.RawDir(), "ust10y.csv"))

	s, err := p.seriesRepo.GetSeries("spx", "", "")
	require.NoError(t, err)
	assert.Equal(t, 10, s.CountDefined())
}

func TestPipelineBuildDatasetUsesCache(t *testing.T) {
	cfg := testConfig(t)
	study := testStudy()
	p, _ := setupPipeline(t, cfg, study)
	seedRawFiles(t, cfg, 14)

	ctx := context.Background()
	require.NoError(t, p.Fetch(ctx))

	ds1, err := p.BuildDataset(ctx)
	require.NoError(t, err)

	// Second build hits the msgpack cache and returns the same table.
	ds2, err := p.BuildDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds1.Dates, ds2.Dates)
	assert.Equal(t, ds1.Order, ds2.Order)

	entries, err := os.ReadDir(filepath.Join(cfg.DataDir, "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPipelineMissingSeriesFailsRecorded(t *testing.T) {
	cfg := testConfig(t)
	study := testStudy()
	p, runRepo := setupPipeline(t, cfg, study)

	// Only the equity file exists; the rate series never arrive.
	writeSourceCSV(t, cfg.RawDir(), "spx.csv", 10, func(i int) float64 { return 100 + float64(i) })

	_, err := p.Run(context.Background())
	require.Error(t, err)

	runs, listErr := runRepo.ListRuns(10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, report.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestPipelineThinOverlapIsAlignmentError(t *testing.T) {
	cfg := testConfig(t)
	study := testStudy()
	study.Dataset.MinOverlap = 30
	p, _ := setupPipeline(t, cfg, study)
	seedRawFiles(t, cfg, 14)

	ctx := context.Background()
	require.NoError(t, p.Fetch(ctx))

	_, err := p.BuildDataset(ctx)
	var align *dataset.AlignmentError
	require.ErrorAs(t, err, &align)
}
