package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/ratelens/internal/modules/regression"
)

// WriteCoefficientsCSV writes full-sample results in long format, one row
// per coefficient. Insufficient results contribute a single note row.
func WriteCoefficientsCSV(path string, results []regression.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		header := []string{"spec", "term", "estimate", "std_err", "t_stat", "n", "r2", "adj_r2", "start_date", "end_date", "note"}
		if err := w.Write(header); err != nil {
			return err
		}
		for _, res := range results {
			if res.Insufficient {
				if err := w.Write([]string{res.Spec, "", "", "", "", strconv.Itoa(res.N), "", "", res.StartDate, res.EndDate, res.Reason}); err != nil {
					return err
				}
				continue
			}
			for _, c := range res.Coefficients {
				rec := []string{
					res.Spec, c.Name,
					formatFloat(c.Estimate), formatFloat(c.StdErr), formatFloat(c.TStat),
					strconv.Itoa(res.N), formatFloat(res.R2), formatFloat(res.AdjR2),
					res.StartDate, res.EndDate, "",
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteRollingCSV writes rolling-window results in long format, one row
// per window and coefficient, insufficient windows included.
func WriteRollingCSV(path string, results []regression.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		header := []string{"window", "start_date", "end_date", "term", "estimate", "std_err", "t_stat", "n", "r2", "note"}
		if err := w.Write(header); err != nil {
			return err
		}
		for _, res := range results {
			if res.Insufficient {
				rec := []string{
					strconv.Itoa(res.WindowIndex), res.StartDate, res.EndDate,
					"", "", "", "", strconv.Itoa(res.N), "", res.Reason,
				}
				if err := w.Write(rec); err != nil {
					return err
				}
				continue
			}
			for _, c := range res.Coefficients {
				rec := []string{
					strconv.Itoa(res.WindowIndex), res.StartDate, res.EndDate,
					c.Name, formatFloat(c.Estimate), formatFloat(c.StdErr), formatFloat(c.TStat),
					strconv.Itoa(res.N), formatFloat(res.R2), "",
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteTextSummary writes a fixed-width plain-text rendering of one
// full-sample fit, one coefficient per row.
func WriteTextSummary(path string, res regression.Result) error {
	rule := strings.Repeat("=", 78)
	thin := strings.Repeat("-", 78)

	var b strings.Builder
	fmt.Fprintf(&b, "OLS Regression Results: %s\n%s\n", res.Spec, rule)
	fmt.Fprintf(&b, "%-38s %s\n",
		fmt.Sprintf("Dependent: %s", res.Dependent),
		fmt.Sprintf("N: %d", res.N))
	fmt.Fprintf(&b, "%-38s %s\n",
		fmt.Sprintf("R-squared: %.4f", res.R2),
		fmt.Sprintf("Adj. R-squared: %.4f", res.AdjR2))
	fmt.Fprintf(&b, "%-38s %s\n",
		fmt.Sprintf("Residual SE: %.6f", res.ResidualSE),
		fmt.Sprintf("Sample: %s to %s", res.StartDate, res.EndDate))
	fmt.Fprintf(&b, "%s\n", thin)
	fmt.Fprintf(&b, "%-24s %16s %16s %12s\n", "term", "estimate", "std err", "t-stat")
	fmt.Fprintf(&b, "%s\n", thin)
	for _, c := range res.Coefficients {
		fmt.Fprintf(&b, "%-24s %16.6f %16.6f %12.3f\n", c.Name, c.Estimate, c.StdErr, c.TStat)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// markdownTable renders one result as a markdown coefficient table.
func markdownTable(res regression.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| term | estimate | std err | t-stat |\n")
	fmt.Fprintf(&b, "|------|----------|---------|--------|\n")
	for _, c := range res.Coefficients {
		fmt.Fprintf(&b, "| %s | %.6f | %.6f | %.3f |\n", c.Name, c.Estimate, c.StdErr, c.TStat)
	}
	fmt.Fprintf(&b, "\nN = %d, R² = %.4f, adj. R² = %.4f, sample %s to %s\n",
		res.N, res.R2, res.AdjR2, res.StartDate, res.EndDate)
	return b.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func writeCSV(path string, fill func(w *csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
