package regression

import (
	"fmt"
	"math"

	"github.com/aristath/ratelens/internal/modules/dataset"
)

// FitRolling estimates the model on rolling windows of the dataset.
// Windows are window rows wide and advance by step rows; the final window
// is anchored to the last row so the tail of the sample is always covered.
// A window with too few defined rows produces an insufficient record and
// the sweep continues: instability at the edges of the sample is a
// finding, not a failure.
func FitRolling(ds *dataset.Dataset, spec Spec, window, step int) ([]Result, error) {
	if window < spec.minRows() {
		return nil, fmt.Errorf("regression %s: window %d smaller than minimum rows %d", spec.Name, window, spec.minRows())
	}
	if step < 1 {
		step = 1
	}
	n := ds.Len()
	if n < window {
		return nil, fmt.Errorf("regression %s: dataset has %d rows, window needs %d", spec.Name, n, window)
	}

	fields := append([]string{spec.Dependent}, spec.Regressors...)
	if _, err := ds.ValidRows(fields); err != nil {
		return nil, fmt.Errorf("regression %s: %w", spec.Name, err)
	}
	columns := make([][]float64, len(fields))
	for i, name := range fields {
		columns[i], _ = ds.Field(name)
	}

	var results []Result
	idx := 0
	for start := 0; ; start += step {
		if start > n-window {
			start = n - window
		}

		rows := definedRows(columns, start, start+window)
		if len(rows) < spec.minRows() {
			results = append(results, Result{
				Spec:         spec.Name,
				Dependent:    spec.Dependent,
				Regressors:   spec.Regressors,
				N:            len(rows),
				StartDate:    ds.Dates[start],
				EndDate:      ds.Dates[start+window-1],
				WindowIndex:  idx,
				Insufficient: true,
				Reason:       fmt.Sprintf("%d defined rows in window, need %d", len(rows), spec.minRows()),
			})
		} else {
			res, err := fitRows(ds, spec, rows, idx)
			if err != nil {
				// A singular window is recorded like a thin one.
				results = append(results, Result{
					Spec:         spec.Name,
					Dependent:    spec.Dependent,
					Regressors:   spec.Regressors,
					N:            len(rows),
					StartDate:    ds.Dates[start],
					EndDate:      ds.Dates[start+window-1],
					WindowIndex:  idx,
					Insufficient: true,
					Reason:       err.Error(),
				})
			} else {
				res.StartDate = ds.Dates[start]
				res.EndDate = ds.Dates[start+window-1]
				results = append(results, *res)
			}
		}

		idx++
		if start == n-window {
			break
		}
	}
	return results, nil
}

// definedRows returns the indices in [start, end) where every column is defined.
func definedRows(columns [][]float64, start, end int) []int {
	var rows []int
	for i := start; i < end; i++ {
		defined := true
		for _, col := range columns {
			if math.IsNaN(col[i]) {
				defined = false
				break
			}
		}
		if defined {
			rows = append(rows, i)
		}
	}
	return rows
}
