package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStudy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validStudy = `
name: equity-rates
series:
  - name: spx
    kind: equity
    file: spx.csv
    column: Close
  - name: ust10y
    kind: rate
    file: ust10y.csv
  - name: ust2y
    kind: rate
    file: ust2y.csv
dataset:
  fill_policy: forward_fill
  lags: [1, 5]
  vol_window: 21
analysis:
  dependent: ret_spx
  regressors: [d_ust10y]
  rolling:
    window: 60
    step: 5
`

func TestLoadStudy(t *testing.T) {
	study, err := LoadStudy(writeStudy(t, validStudy))
	require.NoError(t, err)

	assert.Equal(t, "equity-rates", study.Name)
	require.Len(t, study.Series, 3)
	assert.Equal(t, "Close", study.Series[0].Column)
	assert.Equal(t, FillForward, study.Dataset.FillPolicy)
	assert.Equal(t, []int{1, 5}, study.Dataset.Lags)
	assert.Equal(t, 21, study.Dataset.VolWindow)
	assert.Equal(t, []string{"d_ust10y"}, study.Analysis.Regressors)
	assert.Equal(t, 60, study.Analysis.Rolling.Window)
	assert.Equal(t, 5, study.Analysis.Rolling.Step)
}

func TestLoadStudyDefaults(t *testing.T) {
	study, err := LoadStudy(writeStudy(t, `
name: minimal
series:
  - name: spx
    kind: equity
    file: spx.csv
  - name: ust10y
    kind: rate
    file: ust10y.csv
analysis:
  dependent: ret_spx
  regressors: [d_ust10y]
`))
	require.NoError(t, err)

	assert.Equal(t, FillDrop, study.Dataset.FillPolicy)
	assert.Equal(t, 30, study.Dataset.MinOverlap)
	assert.Equal(t, 30, study.Analysis.MinRows)
	assert.Equal(t, "@daily", study.Schedule)
	assert.Equal(t, 0, study.Analysis.Rolling.Window)
}

func TestLoadStudyMissingFile(t *testing.T) {
	_, err := LoadStudy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestStudyValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Study)
		wantErr string
	}{
		{"no series", func(s *Study) { s.Series = nil }, "no series"},
		{"duplicate name", func(s *Study) { s.Series[1].Name = s.Series[0].Name }, "duplicate series"},
		{"bad kind", func(s *Study) { s.Series[0].Kind = "commodity" }, "unknown kind"},
		{"no file", func(s *Study) { s.Series[0].File = "" }, "no input file"},
		{"bad transform", func(s *Study) { s.Series[0].Transform = "sqrt" }, "unknown transform"},
		{"bad fill policy", func(s *Study) { s.Dataset.FillPolicy = "interpolate" }, "unknown fill policy"},
		{"negative lag", func(s *Study) { s.Dataset.Lags = []int{-1} }, "lag orders must be positive"},
		{"no dependent", func(s *Study) { s.Analysis.Dependent = "" }, "no dependent"},
		{"no regressors", func(s *Study) { s.Analysis.Regressors = nil }, "no regressors"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			study, err := LoadStudy(writeStudy(t, validStudy))
			require.NoError(t, err)

			tc.mutate(study)
			err = study.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultTransform(t *testing.T) {
	assert.Equal(t, TransformLogReturn, SeriesSpec{Kind: KindEquity}.DefaultTransform())
	assert.Equal(t, TransformDiff, SeriesSpec{Kind: KindRate}.DefaultTransform())
	assert.Equal(t, TransformLevel, SeriesSpec{Kind: KindRate, Transform: TransformLevel}.DefaultTransform())
}

func TestRateSeries(t *testing.T) {
	study, err := LoadStudy(writeStudy(t, validStudy))
	require.NoError(t, err)
	assert.Equal(t, []string{"ust10y", "ust2y"}, study.RateSeries())
}
