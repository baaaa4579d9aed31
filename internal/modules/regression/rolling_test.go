package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearDataset(n int) map[string][]float64 {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 0.1 * float64(i)
		y[i] = 1.0 - 2.0*x[i]
	}
	return map[string][]float64{"ret_spx": y, "d_ust10y": x}
}

func TestFitRollingWindowCount(t *testing.T) {
	// 11 rows, window 4, step 3: starts 0, 3, 6 and a final window
	// anchored at 7, so ceil((11-4)/3)+1 = 4 records.
	ds := makeDataset(linearDataset(11))
	spec := Spec{Name: "rolling", Dependent: "ret_spx", Regressors: []string{"d_ust10y"}}

	results, err := FitRolling(ds, spec, 4, 3)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, i, res.WindowIndex)
		assert.False(t, res.Insufficient)
		assert.Equal(t, 4, res.N)
		assert.InDelta(t, -2.0, res.Coefficients[1].Estimate, 1e-8)
	}
	assert.Equal(t, "2024-01-01", results[0].StartDate)
	assert.Equal(t, "2024-01-04", results[0].EndDate)
	assert.Equal(t, "2024-01-08", results[3].StartDate)
	assert.Equal(t, "2024-01-11", results[3].EndDate)
}

func TestFitRollingEvenStride(t *testing.T) {
	// (10-4) divides evenly by 3, so no extra anchored window.
	ds := makeDataset(linearDataset(10))
	spec := Spec{Name: "rolling", Dependent: "ret_spx", Regressors: []string{"d_ust10y"}}

	results, err := FitRolling(ds, spec, 4, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "2024-01-10", results[2].EndDate)
}

func TestFitRollingRecordsInsufficientWindows(t *testing.T) {
	fields := linearDataset(8)
	// Undefined regressor head, as after applying a long lag.
	for i := 0; i < 4; i++ {
		fields["d_ust10y"][i] = math.NaN()
	}
	ds := makeDataset(fields)
	spec := Spec{Name: "rolling", Dependent: "ret_spx", Regressors: []string{"d_ust10y"}}

	results, err := FitRolling(ds, spec, 4, 4)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Insufficient)
	assert.Equal(t, 0, results[0].N)
	assert.NotEmpty(t, results[0].Reason)
	assert.Empty(t, results[0].Coefficients)

	assert.False(t, results[1].Insufficient)
	assert.Equal(t, 4, results[1].N)
	assert.InDelta(t, -2.0, results[1].Coefficients[1].Estimate, 1e-8)
}

func TestFitRollingWindowLargerThanDataset(t *testing.T) {
	ds := makeDataset(linearDataset(5))
	spec := Spec{Name: "rolling", Dependent: "ret_spx", Regressors: []string{"d_ust10y"}}

	_, err := FitRolling(ds, spec, 10, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window needs 10")
}

func TestFitRollingWindowBelowMinimumRows(t *testing.T) {
	ds := makeDataset(linearDataset(20))
	spec := Spec{Name: "rolling", Dependent: "ret_spx", Regressors: []string{"d_ust10y"}, MinRows: 10}

	_, err := FitRolling(ds, spec, 5, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smaller than minimum rows")
}
