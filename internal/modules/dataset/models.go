// Package dataset aligns raw series onto a shared trading calendar and
// derives the regression-ready fields (returns, differences, lags).
//
// The central guarantee is the absence of look-ahead: a row dated t is
// only materialized once every required field for t is computable from
// observations at or before t.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Series kinds and transforms, matching the study file vocabulary.
const (
	KindEquity = "equity"
	KindRate   = "rate"

	TransformLogReturn = "log_return"
	TransformDiff      = "diff"
	TransformLevel     = "level"

	FillDrop    = "drop"
	FillForward = "forward_fill"
)

// Input describes one panel series entering the build.
type Input struct {
	Name      string
	Kind      string // equity | rate
	Transform string // log_return | diff | level
}

// Spec controls one dataset build.
type Spec struct {
	Inputs     []Input
	FillPolicy string // drop | forward_fill
	MinOverlap int    // minimum overlapping dates before the build fails
	Lags       []int  // lag orders applied to transformed rate fields
	VolWindow  int    // trailing volatility window for equity returns, 0 disables
	StartDate  string // optional YYYY-MM-DD bound
	EndDate    string // optional YYYY-MM-DD bound
}

// Dataset is the aligned, regression-ready table. Fields are columnar;
// NaN marks an undefined cell (leading lag and volatility rows).
type Dataset struct {
	Dates  []string             `msgpack:"dates"`
	Order  []string             `msgpack:"order"` // stable field order for output
	Fields map[string][]float64 `msgpack:"fields"`
}

// Derived field naming. Lagged fields append _lag<k> to the base field.
func ReturnField(name string) string { return "ret_" + name }
func DiffField(name string) string   { return "d_" + name }
func VolField(name string) string    { return "vol_" + name }
func LagField(field string, k int) string {
	return fmt.Sprintf("%s_lag%d", field, k)
}

// TransformedField returns the analysis field an input contributes.
func TransformedField(in Input) string {
	switch in.Transform {
	case TransformLogReturn:
		return ReturnField(in.Name)
	case TransformDiff:
		return DiffField(in.Name)
	default:
		return in.Name
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Dates)
}

// Field returns a column by name.
func (d *Dataset) Field(name string) ([]float64, bool) {
	values, ok := d.Fields[name]
	return values, ok
}

// ValidRows returns the indices of rows where every named field is defined.
func (d *Dataset) ValidRows(fields []string) ([]int, error) {
	columns := make([][]float64, len(fields))
	for i, name := range fields {
		values, ok := d.Fields[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		columns[i] = values
	}

	var rows []int
	for i := range d.Dates {
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
	return rows, nil
}

// WriteCSV writes the dataset for inspection. Undefined cells are empty.
func (d *Dataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"date"}, d.Order...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for i, date := range d.Dates {
		record[0] = date
		for j, field := range d.Order {
			v := d.Fields[field][i]
			if math.IsNaN(v) {
				record[j+1] = ""
			} else {
				record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", date, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
