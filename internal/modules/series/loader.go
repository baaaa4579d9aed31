package series

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// dateColumnCandidates are header names recognized as the date column,
// checked in order before falling back to the first column.
var dateColumnCandidates = []string{"date", "Date", "DATE", "datetime", "Datetime", "DATETIME"}

// RawTable is a parsed flat file: one shared date axis plus one or more
// numeric value columns. Rows with unparseable dates are dropped; cells
// with unparseable values become NaN.
type RawTable struct {
	DateColumn string
	Columns    []string // numeric columns, in file order
	Dates      []string // ascending, unique
	Values     map[string][]float64
}

// Loader reads raw CSV series files.
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a new raw file loader.
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{
		log: log.With().Str("component", "series_loader").Logger(),
	}
}

// LoadFile parses a CSV file into a RawTable.
func (l *Loader) LoadFile(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("file %s has no data rows", path)
	}

	header := records[0]
	dateIdx := findDateColumn(header)

	type row struct {
		date   string
		values []float64
	}

	var valueIdx []int
	var valueCols []string
	for i, col := range header {
		if i == dateIdx {
			continue
		}
		valueIdx = append(valueIdx, i)
		valueCols = append(valueCols, strings.TrimSpace(col))
	}
	if len(valueCols) == 0 {
		return nil, fmt.Errorf("file %s has no value columns", path)
	}

	var rows []row
	dropped := 0
	for _, rec := range records[1:] {
		if dateIdx >= len(rec) {
			dropped++
			continue
		}
		date, ok := parseDate(rec[dateIdx])
		if !ok {
			dropped++
			continue
		}

		values := make([]float64, len(valueIdx))
		for j, idx := range valueIdx {
			values[j] = math.NaN()
			if idx < len(rec) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64); err == nil {
					values[j] = v
				}
			}
		}
		rows = append(rows, row{date: date, values: values})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s has no rows with parseable dates", path)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].date < rows[j].date })
	for i := 1; i < len(rows); i++ {
		if rows[i].date == rows[i-1].date {
			return nil, fmt.Errorf("file %s has duplicate date %s", path, rows[i].date)
		}
	}

	table := &RawTable{
		DateColumn: strings.TrimSpace(header[dateIdx]),
		Columns:    valueCols,
		Dates:      make([]string, len(rows)),
		Values:     make(map[string][]float64, len(valueCols)),
	}
	for _, col := range valueCols {
		table.Values[col] = make([]float64, len(rows))
	}
	for i, r := range rows {
		table.Dates[i] = r.date
		for j, col := range valueCols {
			table.Values[col][i] = r.values[j]
		}
	}

	if dropped > 0 {
		l.log.Warn().
			Str("file", path).
			Int("dropped_rows", dropped).
			Msg("Dropped rows with unparseable dates")
	}
	l.log.Debug().
		Str("file", path).
		Int("rows", len(rows)).
		Strs("columns", valueCols).
		Msg("Loaded raw table")

	return table, nil
}

// Series extracts one named series from the table. An empty column
// selects the first column that holds at least one number.
func (t *RawTable) Series(name, column string) (Series, error) {
	col := column
	if col == "" {
		for _, c := range t.Columns {
			if countDefined(t.Values[c]) > 0 {
				col = c
				break
			}
		}
		if col == "" {
			return Series{}, fmt.Errorf("no numeric column found for series %s", name)
		}
	}

	values, ok := t.Values[col]
	if !ok {
		return Series{}, fmt.Errorf("column %q not found for series %s (have %v)", col, name, t.Columns)
	}
	if countDefined(values) == 0 {
		return Series{}, fmt.Errorf("column %q holds no numeric values for series %s", col, name)
	}

	s := Series{Name: name, Obs: make([]Observation, len(t.Dates))}
	for i, date := range t.Dates {
		s.Obs[i] = Observation{Date: date, Value: values[i]}
	}
	return s, nil
}

func countDefined(values []float64) int {
	count := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			count++
		}
	}
	return count
}

func findDateColumn(header []string) int {
	for _, candidate := range dateColumnCandidates {
		for i, col := range header {
			if strings.TrimSpace(col) == candidate {
				return i
			}
		}
	}
	// Fallback: assume the first column holds dates
	return 0
}

// parseDate accepts YYYY-MM-DD, optionally with a time suffix.
func parseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
