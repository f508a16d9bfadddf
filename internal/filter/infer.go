// Package filter shapes per-column chart filters. It infers what kind of
// predicate each column supports from a small sample and builds the filter map
// sent to the backend; rows are never filtered client-side.
package filter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"autodash/pkg/dashtypes"
)

// SampleSize is how many non-empty values inference looks at.
const SampleSize = 10

// DateLayouts are the accepted date formats, tried in order.
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// Column describes what filter a column supports.
type Column struct {
	Name       string
	Kind       dashtypes.ColumnKind
	Min        float64   // numeric
	Max        float64   // numeric
	Start      time.Time // date
	End        time.Time // date
	Categories []string  // categorical, distinct in order of appearance
}

// InferColumn classifies a column from at most the first SampleSize non-empty
// values: all numeric, else all dates, else categorical.
func InferColumn(name string, values []any) Column {
	sample := make([]any, 0, SampleSize)
	for _, v := range values {
		if isEmpty(v) {
			continue
		}
		sample = append(sample, v)
		if len(sample) == SampleSize {
			break
		}
	}

	col := Column{Name: name, Kind: dashtypes.ColumnCategorical}
	if len(sample) == 0 {
		return col
	}

	if lo, hi, ok := numericBounds(sample); ok {
		col.Kind = dashtypes.ColumnNumeric
		col.Min, col.Max = lo, hi
		return col
	}
	if start, end, ok := dateBounds(sample); ok {
		col.Kind = dashtypes.ColumnDate
		col.Start, col.End = start, end
		return col
	}

	seen := make(map[string]bool, len(sample))
	for _, v := range sample {
		s := fmt.Sprint(v)
		if !seen[s] {
			seen[s] = true
			col.Categories = append(col.Categories, s)
		}
	}
	return col
}

// InferColumns classifies every column of a preview, ordered by names.
func InferColumns(names []string, rows []dashtypes.Row) []Column {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[name])
		}
		cols = append(cols, InferColumn(name, values))
	}
	return cols
}

func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

func numericBounds(sample []any) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range sample {
		f, ok := dashtypes.Number(v)
		if !ok {
			return 0, 0, false
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	return lo, hi, true
}

func dateBounds(sample []any) (time.Time, time.Time, bool) {
	var start, end time.Time
	for i, v := range sample {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		t, ok := ParseDate(s)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		if i == 0 || t.Before(start) {
			start = t
		}
		if i == 0 || t.After(end) {
			end = t
		}
	}
	return start, end, true
}

// ParseDate parses s with the first matching layout in DateLayouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
