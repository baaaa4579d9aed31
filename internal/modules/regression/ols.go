package regression

import (
	"fmt"
	"math"

	"github.com/aristath/ratelens/internal/modules/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Fit estimates a full-sample OLS model with intercept on the rows of ds
// where the dependent and every regressor are defined. Too few defined
// rows is an error here: a full-sample fit on a sliver of data would be
// silently misleading.
func Fit(ds *dataset.Dataset, spec Spec) (*Result, error) {
	rows, err := validRows(ds, spec)
	if err != nil {
		return nil, err
	}
	if len(rows) < spec.minRows() {
		return nil, fmt.Errorf("regression %s: %d defined rows, need at least %d", spec.Name, len(rows), spec.minRows())
	}
	return fitRows(ds, spec, rows, 0)
}

// CompareMeasures fits the same dependent against each measure one at a
// time, for side-by-side sensitivity comparison. A measure with too few
// defined rows yields an insufficient record instead of failing the set.
func CompareMeasures(ds *dataset.Dataset, dependent string, measures []string, minRows int) ([]Result, error) {
	results := make([]Result, 0, len(measures))
	for _, m := range measures {
		spec := Spec{
			Name:       "cross_" + m,
			Dependent:  dependent,
			Regressors: []string{m},
			MinRows:    minRows,
		}
		rows, err := validRows(ds, spec)
		if err != nil {
			return nil, err
		}
		if len(rows) < spec.minRows() {
			results = append(results, Result{
				Spec:         spec.Name,
				Dependent:    dependent,
				Regressors:   spec.Regressors,
				N:            len(rows),
				Insufficient: true,
				Reason:       fmt.Sprintf("%d defined rows, need %d", len(rows), spec.minRows()),
			})
			continue
		}
		res, err := fitRows(ds, spec, rows, 0)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// validRows resolves the defined-row index set for a spec.
func validRows(ds *dataset.Dataset, spec Spec) ([]int, error) {
	fields := append([]string{spec.Dependent}, spec.Regressors...)
	rows, err := ds.ValidRows(fields)
	if err != nil {
		return nil, fmt.Errorf("regression %s: %w", spec.Name, err)
	}
	return rows, nil
}

// fitRows estimates the model on the given row indices. Callers guarantee
// len(rows) >= spec.minRows() > params.
func fitRows(ds *dataset.Dataset, spec Spec, rows []int, windowIndex int) (*Result, error) {
	n := len(rows)
	p := spec.params()

	y := mat.NewVecDense(n, nil)
	X := mat.NewDense(n, p, nil)
	dep, _ := ds.Field(spec.Dependent)
	for i, row := range rows {
		y.SetVec(i, dep[row])
		X.Set(i, 0, 1.0)
	}
	for j, name := range spec.Regressors {
		col, _ := ds.Field(name)
		for i, row := range rows {
			X.Set(i, j+1, col[row])
		}
	}

	var qr mat.QR
	qr.Factorize(X)
	beta := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return nil, fmt.Errorf("regression %s: singular design matrix: %w", spec.Name, err)
	}

	// Residual sum of squares and sigma^2 with n-p degrees of freedom.
	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(X, beta)
	resid := mat.NewVecDense(n, nil)
	resid.SubVec(y, fitted)
	rss := mat.Dot(resid, resid)
	df := float64(n - p)
	sigma2 := rss / df

	// Coefficient covariance sigma^2 * (X'X)^-1.
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("regression %s: singular design matrix: %w", spec.Name, err)
	}

	tss := stat.Variance(y.RawVector().Data, nil) * float64(n-1)
	r2 := math.NaN()
	adjR2 := math.NaN()
	if tss > 0 {
		r2 = 1 - rss/tss
		adjR2 = 1 - (1-r2)*float64(n-1)/df
	}

	names := append([]string{"const"}, spec.Regressors...)
	coefs := make([]Coefficient, p)
	for j := 0; j < p; j++ {
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		t := math.NaN()
		if se > 0 {
			t = beta.AtVec(j) / se
		}
		coefs[j] = Coefficient{
			Name:     names[j],
			Estimate: beta.AtVec(j),
			StdErr:   se,
			TStat:    t,
		}
	}

	return &Result{
		Spec:         spec.Name,
		Dependent:    spec.Dependent,
		Regressors:   spec.Regressors,
		Coefficients: coefs,
		N:            n,
		R2:           r2,
		AdjR2:        adjR2,
		ResidualSE:   math.Sqrt(sigma2),
		StartDate:    ds.Dates[rows[0]],
		EndDate:      ds.Dates[rows[n-1]],
		WindowIndex:  windowIndex,
	}, nil
}
