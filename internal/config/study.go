package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Series kinds supported by the study file.
const (
	KindEquity = "equity"
	KindRate   = "rate"
)

// Transforms applied to a series when building the dataset.
const (
	TransformDefault   = ""           // log_return for equity, diff for rate
	TransformLogReturn = "log_return" // ln(v_t) - ln(v_{t-1})
	TransformDiff      = "diff"       // v_t - v_{t-1}
	TransformLevel     = "level"      // raw level, no differencing
)

// Fill policies for aligning series onto a shared calendar.
const (
	FillDrop    = "drop"         // strict date intersection
	FillForward = "forward_fill" // union of dates, carry last earlier value forward
)

// Study describes one analysis run: which series to load, how to
// align and transform them, and which regressions to estimate.
type Study struct {
	Name     string       `yaml:"name"`
	Series   []SeriesSpec `yaml:"series"`
	Dataset  DatasetSpec  `yaml:"dataset"`
	Analysis AnalysisSpec `yaml:"analysis"`
	Schedule string       `yaml:"schedule"` // cron spec for the watch command
}

// SeriesSpec identifies one input series inside a raw file.
type SeriesSpec struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`      // equity | rate
	File      string `yaml:"file"`      // file name under data/raw
	Column    string `yaml:"column"`    // value column; empty = first numeric column
	Transform string `yaml:"transform"` // empty = default for kind
}

// DefaultTransform returns the transform applied when none is requested.
func (s SeriesSpec) DefaultTransform() string {
	if s.Transform != TransformDefault {
		return s.Transform
	}
	if s.Kind == KindEquity {
		return TransformLogReturn
	}
	return TransformDiff
}

// DatasetSpec controls alignment and derived fields.
type DatasetSpec struct {
	FillPolicy string `yaml:"fill_policy"` // drop | forward_fill
	MinOverlap int    `yaml:"min_overlap"` // minimum overlapping dates (default 30)
	Lags       []int  `yaml:"lags"`        // lag orders for transformed rate fields
	VolWindow  int    `yaml:"vol_window"`  // trailing volatility window, 0 disables
	StartDate  string `yaml:"start_date"`  // optional YYYY-MM-DD bound
	EndDate    string `yaml:"end_date"`    // optional YYYY-MM-DD bound
}

// AnalysisSpec controls the regressions estimated over the dataset.
type AnalysisSpec struct {
	Dependent  string      `yaml:"dependent"`
	Regressors []string    `yaml:"regressors"`
	MinRows    int         `yaml:"min_rows"` // full-sample guard (default 30)
	Rolling    RollingSpec `yaml:"rolling"`
}

// RollingSpec configures the rolling-window re-estimation.
type RollingSpec struct {
	Window  int `yaml:"window"`   // window length in valid rows, 0 disables
	Step    int `yaml:"step"`     // stride between windows (default 1)
	MinRows int `yaml:"min_rows"` // per-window defined-row minimum, 0 = parameter count
}

// LoadStudy reads and validates a study file.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file: %w", err)
	}

	var study Study
	if err := yaml.Unmarshal(data, &study); err != nil {
		return nil, fmt.Errorf("failed to parse study file: %w", err)
	}

	study.applyDefaults()
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study file %s: %w", path, err)
	}

	return &study, nil
}

func (s *Study) applyDefaults() {
	if s.Dataset.FillPolicy == "" {
		s.Dataset.FillPolicy = FillDrop
	}
	if s.Dataset.MinOverlap <= 0 {
		s.Dataset.MinOverlap = 30
	}
	if s.Analysis.MinRows <= 0 {
		s.Analysis.MinRows = 30
	}
	if s.Analysis.Rolling.Window > 0 && s.Analysis.Rolling.Step <= 0 {
		s.Analysis.Rolling.Step = 1
	}
	if s.Schedule == "" {
		s.Schedule = "@daily"
	}
}

// Validate checks the study for internal consistency.
func (s *Study) Validate() error {
	if len(s.Series) == 0 {
		return fmt.Errorf("no series defined")
	}

	seen := make(map[string]bool, len(s.Series))
	for _, spec := range s.Series {
		if spec.Name == "" {
			return fmt.Errorf("series with empty name")
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate series name %q", spec.Name)
		}
		seen[spec.Name] = true

		if spec.Kind != KindEquity && spec.Kind != KindRate {
			return fmt.Errorf("series %q: unknown kind %q", spec.Name, spec.Kind)
		}
		if spec.File == "" {
			return fmt.Errorf("series %q: no input file", spec.Name)
		}
		switch spec.Transform {
		case TransformDefault, TransformLogReturn, TransformDiff, TransformLevel:
		default:
			return fmt.Errorf("series %q: unknown transform %q", spec.Name, spec.Transform)
		}
	}

	if s.Dataset.FillPolicy != FillDrop && s.Dataset.FillPolicy != FillForward {
		return fmt.Errorf("unknown fill policy %q", s.Dataset.FillPolicy)
	}
	for _, lag := range s.Dataset.Lags {
		if lag <= 0 {
			return fmt.Errorf("lag orders must be positive, got %d", lag)
		}
	}
	if s.Dataset.VolWindow < 0 {
		return fmt.Errorf("vol_window must be >= 0, got %d", s.Dataset.VolWindow)
	}

	if s.Analysis.Dependent == "" {
		return fmt.Errorf("analysis: no dependent variable")
	}
	if len(s.Analysis.Regressors) == 0 {
		return fmt.Errorf("analysis: no regressors")
	}
	if s.Analysis.Rolling.Window < 0 {
		return fmt.Errorf("rolling window must be >= 0, got %d", s.Analysis.Rolling.Window)
	}
	if s.Analysis.Rolling.Window > 0 && s.Analysis.Rolling.Step <= 0 {
		return fmt.Errorf("rolling step must be positive when rolling is enabled")
	}

	return nil
}

// RateSeries returns the names of all rate-kind series, in study order.
// The cross-measure comparison regresses the dependent on each in turn.
func (s *Study) RateSeries() []string {
	var names []string
	for _, spec := range s.Series {
		if spec.Kind == KindRate {
			names = append(names, spec.Name)
		}
	}
	return names
}
