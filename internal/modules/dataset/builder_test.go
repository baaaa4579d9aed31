package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/ratelens/internal/modules/series"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeries(name string, dates []string, values []float64) series.Series {
	obs := make([]series.Observation, len(dates))
	for i := range dates {
		obs[i] = series.Observation{Date: dates[i], Value: values[i]}
	}
	return series.Series{Name: name, Obs: obs}
}

func testBuilder() *Builder {
	return NewBuilder(zerolog.Nop())
}

func TestBuildReturnsAndDifferences(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, []float64{100, 102, 101}),
		"ust10y": testSeries("ust10y", dates, []float64{1.0, 1.1, 1.05}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)

	// Row 0 of the calendar has no prior observation, so the first
	// materialized row is the second input date.
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, ds.Dates)

	ret, ok := ds.Field("ret_spx")
	require.True(t, ok)
	assert.InDelta(t, math.Log(102.0/100.0), ret[0], 1e-12)
	assert.InDelta(t, math.Log(101.0/102.0), ret[1], 1e-12)

	diff, ok := ds.Field("d_ust10y")
	require.True(t, ok)
	assert.InDelta(t, 0.1, diff[0], 1e-12)
	assert.InDelta(t, -0.05, diff[1], 1e-12)

	// Level columns survive alongside the transforms.
	spx, ok := ds.Field("spx")
	require.True(t, ok)
	assert.Equal(t, []float64{102, 101}, spx)
}

func TestBuildTransformsReconstructLevels(t *testing.T) {
	dates := []string{
		"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11",
	}
	prices := []float64{100, 102, 101, 103, 104.5, 103.2, 105, 106.1}
	rates := []float64{1.0, 1.1, 1.05, 1.2, 1.18, 1.25, 1.22, 1.3}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, prices),
		"ust10y": testSeries("ust10y", dates, rates),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)
	require.Equal(t, len(dates)-1, ds.Len())

	ret, _ := ds.Field("ret_spx")
	diff, _ := ds.Field("d_ust10y")
	spxLevel, _ := ds.Field("spx")
	rateLevel, _ := ds.Field("ust10y")

	// Compounding the log returns and summing the differences from the
	// first materialized row walks the original levels back out.
	price := spxLevel[0]
	rate := rateLevel[0]
	for i := 1; i < ds.Len(); i++ {
		price *= math.Exp(ret[i])
		rate += diff[i]
		assert.InDelta(t, spxLevel[i], price, 1e-9, "price at row %d", i)
		assert.InDelta(t, rateLevel[i], rate, 1e-9, "rate at row %d", i)
	}
	assert.InDelta(t, prices[len(prices)-1], price, 1e-9)
	assert.InDelta(t, rates[len(rates)-1], rate, 1e-9)
}

func TestBuildDropPolicyIntersectsDates(t *testing.T) {
	panel := map[string]series.Series{
		"spx": testSeries("spx",
			[]string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"},
			[]float64{100, 101, 102, 103}),
		"ust10y": testSeries("ust10y",
			[]string{"2024-01-02", "2024-01-04", "2024-01-05"},
			[]float64{1.0, 1.2, 1.1}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)

	// 2024-01-03 is missing from the rate series and gets dropped, so the
	// equity return for 2024-01-04 spans two calendar days of the
	// intersection: ln(102/100).
	assert.Equal(t, []string{"2024-01-04", "2024-01-05"}, ds.Dates)
	ret, _ := ds.Field("ret_spx")
	assert.InDelta(t, math.Log(102.0/100.0), ret[0], 1e-12)
}

func TestBuildForwardFillCarriesOnlyEarlierValues(t *testing.T) {
	panel := map[string]series.Series{
		"spx": testSeries("spx",
			[]string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"},
			[]float64{100, 101, 102, 103}),
		"ust10y": testSeries("ust10y",
			[]string{"2024-01-02", "2024-01-04", "2024-01-05"},
			[]float64{1.0, 1.2, 1.1}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillForward,
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)

	// The calendar keeps 2024-01-03; the rate level there is the carried
	// 2024-01-02 value, never the later 2024-01-04 one.
	assert.Equal(t, []string{"2024-01-03", "2024-01-04", "2024-01-05"}, ds.Dates)
	level, _ := ds.Field("ust10y")
	assert.Equal(t, []float64{1.0, 1.2, 1.1}, level)
	diff, _ := ds.Field("d_ust10y")
	assert.InDelta(t, 0.0, diff[0], 1e-12)
	assert.InDelta(t, 0.2, diff[1], 1e-12)
}

func TestBuildLagFieldsShiftForward(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, []float64{100, 101, 102, 103, 104}),
		"ust10y": testSeries("ust10y", dates, []float64{1.0, 1.1, 1.2, 1.15, 1.25}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
		Lags:       []int{2, 1, 1},
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)

	base, _ := ds.Field("d_ust10y")
	lag1, ok := ds.Field("d_ust10y_lag1")
	require.True(t, ok)
	lag2, ok := ds.Field("d_ust10y_lag2")
	require.True(t, ok)

	assert.True(t, math.IsNaN(lag1[0]))
	assert.Equal(t, base[0], lag1[1])
	assert.Equal(t, base[2], lag1[3])
	assert.True(t, math.IsNaN(lag2[0]))
	assert.True(t, math.IsNaN(lag2[1]))
	assert.Equal(t, base[0], lag2[2])

	// The equity return never gets a lag variant.
	_, ok = ds.Field("ret_spx_lag1")
	assert.False(t, ok)
}

func TestBuildVolatilityWindowLooksBackward(t *testing.T) {
	dates := []string{
		"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08",
		"2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12", "2024-01-15",
	}
	prices := make([]float64, len(dates))
	rates := make([]float64, len(dates))
	for i := range dates {
		prices[i] = 100 + float64(i)
		rates[i] = 1.0 + 0.01*float64(i)
	}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, prices),
		"ust10y": testSeries("ust10y", dates, rates),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
		VolWindow:  5,
	}

	ds, err := testBuilder().Build(panel, spec)
	require.NoError(t, err)

	vol, ok := ds.Field("vol_spx")
	require.True(t, ok)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(vol[i]), "row %d should be undefined", i)
	}
	for i := 4; i < len(vol); i++ {
		assert.False(t, math.IsNaN(vol[i]), "row %d should be defined", i)
		assert.Greater(t, vol[i], 0.0)
	}
}

func TestBuildMissingSeriesIsDataGap(t *testing.T) {
	panel := map[string]series.Series{
		"spx": testSeries("spx", []string{"2024-01-02"}, []float64{100}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
	}

	_, err := testBuilder().Build(panel, spec)
	var gap *DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "ust10y", gap.Series)
}

func TestBuildEmptyRangeIsDataGap(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03"}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, []float64{100, 101}),
		"ust10y": testSeries("ust10y", dates, []float64{1.0, 1.1}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
		StartDate:  "2025-01-01",
	}

	_, err := testBuilder().Build(panel, spec)
	var gap *DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "2025-01-01", gap.StartDate)
}

func TestBuildThinOverlapIsAlignmentError(t *testing.T) {
	panel := map[string]series.Series{
		"spx": testSeries("spx",
			[]string{"2024-01-02", "2024-01-03", "2024-01-04"},
			[]float64{100, 101, 102}),
		"ust10y": testSeries("ust10y",
			[]string{"2024-01-04", "2024-01-05", "2024-01-08"},
			[]float64{1.0, 1.1, 1.2}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
		MinOverlap: 30,
	}

	_, err := testBuilder().Build(panel, spec)
	var align *AlignmentError
	require.ErrorAs(t, err, &align)
	assert.Equal(t, 1, align.Overlap)
	assert.Equal(t, 30, align.MinOverlap)
}

func TestBuildRejectsNonPositiveLevels(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	panel := map[string]series.Series{
		"spx":    testSeries("spx", dates, []float64{100, -5, 102}),
		"ust10y": testSeries("ust10y", dates, []float64{1.0, 1.1, 1.2}),
	}
	spec := Spec{
		Inputs: []Input{
			{Name: "spx", Kind: KindEquity, Transform: TransformLogReturn},
			{Name: "ust10y", Kind: KindRate, Transform: TransformDiff},
		},
		FillPolicy: FillDrop,
	}

	_, err := testBuilder().Build(panel, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive level")
	assert.False(t, errors.As(err, new(*DataGapError)))
}
