// Package regression estimates ordinary least squares models over an
// aligned dataset, full-sample or on rolling windows. All functions are
// pure: results are returned values, nothing is mutated.
package regression

// Spec names a regression to estimate.
type Spec struct {
	Name       string   // label used in reports, e.g. "baseline"
	Dependent  string   // dataset field
	Regressors []string // dataset fields, possibly lag variants
	MinRows    int      // minimum defined rows for the fit (0 = parameter count + 1)
}

// Coefficient is one estimated parameter. The intercept is named "const".
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TStat    float64 `json:"t_stat"`
}

// Result is one estimated model, full-sample or one rolling window.
// Insufficient marks a window that was skipped for lack of defined rows;
// such records carry no coefficients and are never fatal.
type Result struct {
	Spec         string        `json:"spec"`
	Dependent    string        `json:"dependent"`
	Regressors   []string      `json:"regressors"`
	Coefficients []Coefficient `json:"coefficients,omitempty"`
	N            int           `json:"n"`
	R2           float64       `json:"r2"`
	AdjR2        float64       `json:"adj_r2"`
	ResidualSE   float64       `json:"residual_se"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	WindowIndex  int           `json:"window_index"`
	Insufficient bool          `json:"insufficient,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// params returns the number of estimated parameters (regressors + intercept).
func (s Spec) params() int {
	return len(s.Regressors) + 1
}

// minRows returns the effective defined-row requirement for one fit.
func (s Spec) minRows() int {
	if s.MinRows > 0 {
		return s.MinRows
	}
	return s.params() + 1
}
