// Package report renders analysis results into tables, figures and a
// markdown summary, and records completed runs in results.db.
package report

import (
	"time"

	"github.com/aristath/ratelens/internal/modules/dataset"
	"github.com/aristath/ratelens/internal/modules/regression"
)

// Run statuses stored in results.db.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one completed analysis run.
type Run struct {
	ID          string    `json:"id"`
	Study       string    `json:"study"`
	CreatedAt   time.Time `json:"created_at"`
	Rows        int       `json:"rows"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SummaryPath string    `json:"summary_path,omitempty"`
}

// Input carries everything one report is generated from.
type Input struct {
	Run       Run
	StudyPath string // study file the summary's reproduce command names
	Dataset   *dataset.Dataset
	Baseline  *regression.Result
	Lagged    *regression.Result
	Rolling   []regression.Result
	Cross     []regression.Result
}

// Artifacts lists the files a report run produced, for the summary
// inventory and the API.
type Artifacts struct {
	SummaryPath string   `json:"summary_path"`
	Tables      []string `json:"tables"`
	Figures     []string `json:"figures"`
}

// Results returns every regression result in the input, full-sample
// first, for persistence.
func (in Input) Results() []regression.Result {
	var out []regression.Result
	if in.Baseline != nil {
		out = append(out, *in.Baseline)
	}
	if in.Lagged != nil {
		out = append(out, *in.Lagged)
	}
	out = append(out, in.Cross...)
	out = append(out, in.Rolling...)
	return out
}
