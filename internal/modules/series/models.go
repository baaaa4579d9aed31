// Package series provides loading and storage of raw daily time series.
package series

import (
	"fmt"
	"math"
)

// Observation is a single (trading date, value) pair.
// Value is NaN when the source file had no usable number for that date.
type Observation struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// Series is a named sequence of daily observations, dates strictly increasing.
type Series struct {
	Name string
	Obs  []Observation
}

// Dates returns the observation dates in order.
func (s Series) Dates() []string {
	dates := make([]string, len(s.Obs))
	for i, o := range s.Obs {
		dates[i] = o.Date
	}
	return dates
}

// Values returns the observation values in date order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Obs))
	for i, o := range s.Obs {
		values[i] = o.Value
	}
	return values
}

// Slice returns the observations within [startDate, endDate].
// Empty bounds are open.
func (s Series) Slice(startDate, endDate string) Series {
	out := Series{Name: s.Name}
	for _, o := range s.Obs {
		if startDate != "" && o.Date < startDate {
			continue
		}
		if endDate != "" && o.Date > endDate {
			continue
		}
		out.Obs = append(out.Obs, o)
	}
	return out
}

// Validate checks the strictly-increasing-dates invariant.
func (s Series) Validate() error {
	for i := 1; i < len(s.Obs); i++ {
		if s.Obs[i].Date <= s.Obs[i-1].Date {
			return fmt.Errorf("series %s: dates not strictly increasing at %s", s.Name, s.Obs[i].Date)
		}
	}
	return nil
}

// CountDefined returns the number of non-NaN observations.
func (s Series) CountDefined() int {
	count := 0
	for _, o := range s.Obs {
		if !math.IsNaN(o.Value) {
			count++
		}
	}
	return count
}
