package dataset

import "fmt"

// DataGapError reports a series with no usable observations inside the
// configured date range. Fatal for the run: no partial dataset is built.
type DataGapError struct {
	Series    string
	StartDate string
	EndDate   string
}

func (e *DataGapError) Error() string {
	if e.StartDate == "" && e.EndDate == "" {
		return fmt.Sprintf("series %s has no observations", e.Series)
	}
	return fmt.Sprintf("series %s has no observations in range [%s, %s]", e.Series, e.StartDate, e.EndDate)
}

// AlignmentError reports that the series overlap on too few trading
// dates for a meaningful dataset. Fatal for the run.
type AlignmentError struct {
	Overlap    int
	MinOverlap int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("only %d overlapping dates, need at least %d", e.Overlap, e.MinOverlap)
}
