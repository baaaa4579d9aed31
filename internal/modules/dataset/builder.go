package dataset

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/ratelens/internal/modules/series"
	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
)

// Builder assembles aligned datasets from a panel of raw series.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a new dataset builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "dataset_builder").Logger(),
	}
}

// obsIndex holds the defined observations of one series.
type obsIndex struct {
	byDate map[string]float64
	dates  []string // sorted ascending
}

// Build aligns the panel onto a shared calendar and derives all fields.
//
// Returns *DataGapError when a required series has no usable observations
// in the configured range, and *AlignmentError when the series overlap on
// fewer than MinOverlap dates. Both are fatal: no partial dataset exists.
func (b *Builder) Build(panel map[string]series.Series, spec Spec) (*Dataset, error) {
	if len(spec.Inputs) == 0 {
		return nil, fmt.Errorf("no inputs specified")
	}

	// Collect defined observations per series within the configured range.
	indexes := make(map[string]obsIndex, len(spec.Inputs))

	for _, in := range spec.Inputs {
		s, ok := panel[in.Name]
		if !ok {
			return nil, &DataGapError{Series: in.Name, StartDate: spec.StartDate, EndDate: spec.EndDate}
		}
		sliced := s.Slice(spec.StartDate, spec.EndDate)

		idx := obsIndex{byDate: make(map[string]float64)}
		for _, o := range sliced.Obs {
			if math.IsNaN(o.Value) {
				continue
			}
			idx.byDate[o.Date] = o.Value
			idx.dates = append(idx.dates, o.Date)
		}
		if len(idx.dates) == 0 {
			return nil, &DataGapError{Series: in.Name, StartDate: spec.StartDate, EndDate: spec.EndDate}
		}
		indexes[in.Name] = idx
	}

	calendar := b.buildCalendar(spec, indexes)
	minOverlap := spec.MinOverlap
	if minOverlap < 2 {
		// Differencing needs two observations no matter what was configured.
		minOverlap = 2
	}
	if len(calendar) < minOverlap {
		return nil, &AlignmentError{Overlap: len(calendar), MinOverlap: minOverlap}
	}

	// Level columns on the shared calendar. Under forward_fill a missing
	// date takes the last earlier observation, never a later one.
	levels := make(map[string][]float64, len(spec.Inputs))
	for _, in := range spec.Inputs {
		idx := indexes[in.Name]
		col := make([]float64, len(calendar))
		if spec.FillPolicy == FillForward {
			j := 0
			last := math.NaN()
			for i, date := range calendar {
				for j < len(idx.dates) && idx.dates[j] <= date {
					last = idx.byDate[idx.dates[j]]
					j++
				}
				col[i] = last
			}
		} else {
			for i, date := range calendar {
				col[i] = idx.byDate[date]
			}
		}
		levels[in.Name] = col
	}

	// Transformed columns. Row 0 is undefined for any differenced field.
	transforms := make(map[string][]float64)
	for _, in := range spec.Inputs {
		level := levels[in.Name]
		switch in.Transform {
		case TransformLogReturn:
			col := make([]float64, len(calendar))
			col[0] = math.NaN()
			for i := 1; i < len(level); i++ {
				if level[i] <= 0 || level[i-1] <= 0 {
					return nil, fmt.Errorf("series %s: non-positive level at %s, cannot compute log return", in.Name, calendar[i])
				}
				col[i] = math.Log(level[i]) - math.Log(level[i-1])
			}
			transforms[ReturnField(in.Name)] = col
		case TransformDiff:
			col := make([]float64, len(calendar))
			col[0] = math.NaN()
			for i := 1; i < len(level); i++ {
				col[i] = level[i] - level[i-1]
			}
			transforms[DiffField(in.Name)] = col
		case TransformLevel:
			// Raw level only, no derived column.
		default:
			return nil, fmt.Errorf("series %s: unknown transform %q", in.Name, in.Transform)
		}
	}

	// Materialize rows only from the first date where every base field is
	// defined. This is where the no-look-ahead guarantee becomes concrete:
	// earlier dates cannot resolve all required fields from history alone.
	baseFields := make([][]float64, 0, len(levels)+len(transforms))
	for _, col := range levels {
		baseFields = append(baseFields, col)
	}
	for _, col := range transforms {
		baseFields = append(baseFields, col)
	}
	start := 0
	for ; start < len(calendar); start++ {
		defined := true
		for _, col := range baseFields {
			if math.IsNaN(col[start]) {
				defined = false
				break
			}
		}
		if defined {
			break
		}
	}
	if start >= len(calendar) {
		return nil, &AlignmentError{Overlap: 0, MinOverlap: minOverlap}
	}

	ds := &Dataset{
		Dates:  calendar[start:],
		Fields: make(map[string][]float64),
	}
	for _, in := range spec.Inputs {
		ds.Fields[in.Name] = levels[in.Name][start:]
		ds.Order = append(ds.Order, in.Name)
	}
	for _, in := range spec.Inputs {
		if in.Transform == TransformLevel {
			continue
		}
		field := TransformedField(in)
		ds.Fields[field] = transforms[field][start:]
		ds.Order = append(ds.Order, field)
	}

	// Lagged copies of transformed rate fields: value shifted forward k
	// trading days, first k rows undefined.
	lags := normalizeLags(spec.Lags)
	for _, in := range spec.Inputs {
		if in.Kind != KindRate || in.Transform == TransformLevel {
			continue
		}
		base := ds.Fields[TransformedField(in)]
		for _, k := range lags {
			col := make([]float64, len(base))
			for i := range col {
				if i < k {
					col[i] = math.NaN()
				} else {
					col[i] = base[i-k]
				}
			}
			field := LagField(TransformedField(in), k)
			ds.Fields[field] = col
			ds.Order = append(ds.Order, field)
		}
	}

	// Trailing realized volatility of equity returns. The window looks
	// strictly backward, so the first window-1 rows are undefined.
	if spec.VolWindow > 1 {
		for _, in := range spec.Inputs {
			if in.Kind != KindEquity || in.Transform != TransformLogReturn {
				continue
			}
			ret := ds.Fields[ReturnField(in.Name)]
			if len(ret) < spec.VolWindow {
				continue
			}
			col := talib.StdDev(ret, spec.VolWindow, 1.0)
			for i := 0; i < spec.VolWindow-1 && i < len(col); i++ {
				col[i] = math.NaN()
			}
			field := VolField(in.Name)
			ds.Fields[field] = col
			ds.Order = append(ds.Order, field)
		}
	}

	b.log.Info().
		Int("rows", ds.Len()).
		Int("fields", len(ds.Fields)).
		Str("fill_policy", spec.FillPolicy).
		Str("first_date", ds.Dates[0]).
		Str("last_date", ds.Dates[len(ds.Dates)-1]).
		Msg("Built aligned dataset")

	return ds, nil
}

// buildCalendar returns the shared ascending date axis.
//
// drop: strict intersection of defined dates. forward_fill: union of
// defined dates clamped to the overlapping range, so every series has at
// least one observation at or before each calendar date.
func (b *Builder) buildCalendar(spec Spec, indexes map[string]obsIndex) []string {
	if spec.FillPolicy == FillForward {
		maxFirst := ""
		minLast := ""
		union := make(map[string]bool)
		for _, idx := range indexes {
			first := idx.dates[0]
			last := idx.dates[len(idx.dates)-1]
			if maxFirst == "" || first > maxFirst {
				maxFirst = first
			}
			if minLast == "" || last < minLast {
				minLast = last
			}
			for _, d := range idx.dates {
				union[d] = true
			}
		}

		var calendar []string
		for d := range union {
			if d >= maxFirst && d <= minLast {
				calendar = append(calendar, d)
			}
		}
		sort.Strings(calendar)
		return calendar
	}

	// Intersection: count date occurrences across all series.
	counts := make(map[string]int)
	for _, idx := range indexes {
		for _, d := range idx.dates {
			counts[d]++
		}
	}
	var calendar []string
	for d, n := range counts {
		if n == len(indexes) {
			calendar = append(calendar, d)
		}
	}
	sort.Strings(calendar)
	return calendar
}

func normalizeLags(lags []int) []int {
	seen := make(map[int]bool, len(lags))
	var out []int
	for _, k := range lags {
		if k > 0 && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
