package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Generator writes the artifacts of one run: CSV tables, PNG figures and
// the markdown summary that ties them together.
type Generator struct {
	tablesDir  string
	figuresDir string
	log        zerolog.Logger
}

// NewGenerator creates a report generator writing under the given directories.
func NewGenerator(tablesDir, figuresDir string, log zerolog.Logger) *Generator {
	return &Generator{
		tablesDir:  tablesDir,
		figuresDir: figuresDir,
		log:        log.With().Str("component", "report_generator").Logger(),
	}
}

// Generate writes every artifact for the input and returns the inventory.
// Figures that cannot be drawn (multi-regressor fit, no valid windows)
// are logged and skipped rather than failing the report.
func (g *Generator) Generate(in Input) (*Artifacts, error) {
	if in.Dataset == nil || in.Baseline == nil {
		return nil, fmt.Errorf("report input needs a dataset and a baseline result")
	}

	art := &Artifacts{}

	fullResults := in.Results()
	fullSample := fullResults[:len(fullResults)-len(in.Rolling)]

	coefPath := filepath.Join(g.tablesDir, "coefficients.csv")
	if err := WriteCoefficientsCSV(coefPath, fullSample); err != nil {
		return nil, err
	}
	art.Tables = append(art.Tables, coefPath)

	textPath := filepath.Join(g.tablesDir, "baseline_regression.txt")
	if err := WriteTextSummary(textPath, *in.Baseline); err != nil {
		return nil, err
	}
	art.Tables = append(art.Tables, textPath)

	if len(in.Rolling) > 0 {
		rollingPath := filepath.Join(g.tablesDir, "rolling.csv")
		if err := WriteRollingCSV(rollingPath, in.Rolling); err != nil {
			return nil, err
		}
		art.Tables = append(art.Tables, rollingPath)
	}

	if len(in.Baseline.Regressors) == 1 {
		scatterPath := filepath.Join(g.figuresDir, "baseline_scatter.png")
		if err := ScatterFigure(scatterPath, in.Dataset, *in.Baseline); err != nil {
			g.log.Warn().Err(err).Msg("Skipping scatter figure")
		} else {
			art.Figures = append(art.Figures, scatterPath)
		}
	}
	if len(in.Rolling) > 0 && len(in.Baseline.Regressors) > 0 {
		term := in.Baseline.Regressors[0]
		rollingFigPath := filepath.Join(g.figuresDir, "rolling_"+term+".png")
		if err := RollingFigure(rollingFigPath, in.Rolling, term); err != nil {
			g.log.Warn().Err(err).Msg("Skipping rolling figure")
		} else {
			art.Figures = append(art.Figures, rollingFigPath)
		}
	}

	summaryPath := filepath.Join(g.tablesDir, "summary.md")
	if err := g.writeSummary(summaryPath, in, art); err != nil {
		return nil, err
	}
	art.SummaryPath = summaryPath

	g.log.Info().
		Str("run_id", in.Run.ID).
		Int("tables", len(art.Tables)).
		Int("figures", len(art.Figures)).
		Str("summary", summaryPath).
		Msg("Generated report")
	return art, nil
}

func (g *Generator) writeSummary(path string, in Input, art *Artifacts) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", in.Run.Study)
	fmt.Fprintf(&b, "- Run ID: `%s`\n", in.Run.ID)
	fmt.Fprintf(&b, "- Generated: %s\n", in.Run.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Observations: %d rows, %s to %s\n\n",
		in.Dataset.Len(), in.Dataset.Dates[0], in.Dataset.Dates[in.Dataset.Len()-1])

	fmt.Fprintf(&b, "## Baseline\n\n")
	fmt.Fprintf(&b, "%s ~ %s\n\n", in.Baseline.Dependent, strings.Join(in.Baseline.Regressors, " + "))
	b.WriteString(markdownTable(*in.Baseline))

	if in.Lagged != nil {
		fmt.Fprintf(&b, "\n## Lagged\n\n")
		fmt.Fprintf(&b, "%s ~ %s\n\n", in.Lagged.Dependent, strings.Join(in.Lagged.Regressors, " + "))
		b.WriteString(markdownTable(*in.Lagged))
	}

	if len(in.Cross) > 0 {
		fmt.Fprintf(&b, "\n## Measure comparison\n\n")
		fmt.Fprintf(&b, "| measure | slope | t-stat | R² | n | note |\n")
		fmt.Fprintf(&b, "|---------|-------|--------|-----|---|------|\n")
		for _, res := range in.Cross {
			if res.Insufficient {
				fmt.Fprintf(&b, "| %s | | | | %d | %s |\n",
					strings.Join(res.Regressors, "+"), res.N, res.Reason)
				continue
			}
			fmt.Fprintf(&b, "| %s | %.6f | %.3f | %.4f | %d | |\n",
				res.Regressors[0], res.Coefficients[1].Estimate,
				res.Coefficients[1].TStat, res.R2, res.N)
		}
	}

	if len(in.Rolling) > 0 {
		fitted, skipped := 0, 0
		for _, res := range in.Rolling {
			if res.Insufficient {
				skipped++
			} else {
				fitted++
			}
		}
		fmt.Fprintf(&b, "\n## Rolling windows\n\n")
		fmt.Fprintf(&b, "%d windows fitted, %d skipped for insufficient data.\n", fitted, skipped)
	}

	fmt.Fprintf(&b, "\n## Artifacts\n\n")
	for _, p := range art.Tables {
		fmt.Fprintf(&b, "- `%s`\n", p)
	}
	for _, p := range art.Figures {
		fmt.Fprintf(&b, "- `%s`\n", p)
	}

	studyPath := in.StudyPath
	if studyPath == "" {
		studyPath = "study.yaml"
	}
	fmt.Fprintf(&b, "\n## Reproduce\n\n")
	fmt.Fprintf(&b, "```\nratelens run --config %s\n```\n", studyPath)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
