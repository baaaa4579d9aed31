package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/aristath/ratelens/internal/modules/dataset"
	"github.com/aristath/ratelens/internal/modules/regression"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	scatterColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	fittedColor  = color.RGBA{R: 205, G: 60, B: 60, A: 255}
	zeroColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// ScatterFigure draws the dependent against a single regressor with the
// fitted line overlaid. Only rows where both fields are defined appear.
func ScatterFigure(path string, ds *dataset.Dataset, res regression.Result) error {
	if len(res.Regressors) != 1 {
		return fmt.Errorf("scatter figure needs exactly one regressor, got %d", len(res.Regressors))
	}
	if res.Insufficient || len(res.Coefficients) != 2 {
		return fmt.Errorf("scatter figure needs a fitted two-parameter model")
	}

	rows, err := ds.ValidRows([]string{res.Dependent, res.Regressors[0]})
	if err != nil {
		return err
	}
	dep, _ := ds.Field(res.Dependent)
	reg, _ := ds.Field(res.Regressors[0])

	pts := make(plotter.XYs, len(rows))
	xMin, xMax := 0.0, 0.0
	for i, row := range rows {
		pts[i].X = reg[row]
		pts[i].Y = dep[row]
		if i == 0 || pts[i].X < xMin {
			xMin = pts[i].X
		}
		if i == 0 || pts[i].X > xMax {
			xMax = pts[i].X
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", res.Dependent, res.Regressors[0])
	p.X.Label.Text = res.Regressors[0]
	p.Y.Label.Text = res.Dependent

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Color = scatterColor
	scatter.GlyphStyle.Radius = vg.Points(2)

	intercept := res.Coefficients[0].Estimate
	slope := res.Coefficients[1].Estimate
	fitted, err := plotter.NewLine(plotter.XYs{
		{X: xMin, Y: intercept + slope*xMin},
		{X: xMax, Y: intercept + slope*xMax},
	})
	if err != nil {
		return fmt.Errorf("failed to build fitted line: %w", err)
	}
	fitted.LineStyle.Color = fittedColor
	fitted.LineStyle.Width = vg.Points(1.5)

	p.Add(scatter, fitted)
	p.Legend.Add("observations", scatter)
	p.Legend.Add("fitted", fitted)
	p.Legend.Top = true

	return savePlot(p, path)
}

// RollingFigure draws one coefficient's estimate across rolling windows.
// Insufficient windows leave gaps in the line.
func RollingFigure(path string, results []regression.Result, term string) error {
	var pts plotter.XYs
	for _, res := range results {
		if res.Insufficient {
			continue
		}
		for _, c := range res.Coefficients {
			if c.Name == term {
				pts = append(pts, plotter.XY{X: float64(res.WindowIndex), Y: c.Estimate})
			}
		}
	}
	if len(pts) == 0 {
		return fmt.Errorf("no fitted windows carry term %q", term)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("rolling estimate of %s", term)
	p.X.Label.Text = "window"
	p.Y.Label.Text = "estimate"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build rolling line: %w", err)
	}
	line.LineStyle.Color = fittedColor
	line.LineStyle.Width = vg.Points(1.5)

	zero, err := plotter.NewLine(plotter.XYs{
		{X: pts[0].X, Y: 0},
		{X: pts[len(pts)-1].X, Y: 0},
	})
	if err != nil {
		return fmt.Errorf("failed to build reference line: %w", err)
	}
	zero.LineStyle.Color = zeroColor
	zero.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(line, zero)
	return savePlot(p, path)
}

func savePlot(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create figure directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save figure %s: %w", path, err)
	}
	return nil
}
