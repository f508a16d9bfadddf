package filter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"autodash/pkg/dashtypes"
)

// Validation errors returned by Panel setters.
var (
	ErrInvertedRange   = errors.New("range minimum is greater than maximum")
	ErrInvertedDates   = errors.New("start date is after end date")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNoCategories    = errors.New("at least one category is required")
	ErrEmptyColumn     = errors.New("column name is required")
	ErrInvalidFilterEx = errors.New("invalid filter expression")
)

// Panel accumulates per-column predicates for one chart.
type Panel struct {
	filters dashtypes.FilterMap
}

// NewPanel returns a panel seeded with existing filters, which are copied.
func NewPanel(existing dashtypes.FilterMap) *Panel {
	p := &Panel{filters: dashtypes.FilterMap{}}
	for k, v := range existing {
		p.filters[k] = v
	}
	return p
}

// SetRange sets a numeric range. A nil bound is open.
func (p *Panel) SetRange(column string, lo, hi *float64) error {
	if column == "" {
		return ErrEmptyColumn
	}
	if lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%s: %w", column, ErrInvertedRange)
	}
	p.filters[column] = dashtypes.FilterSpec{Type: dashtypes.FilterRange, Min: lo, Max: hi}
	return nil
}

// SetDateRange sets an inclusive date range. Either end may be empty.
func (p *Panel) SetDateRange(column, start, end string) error {
	if column == "" {
		return ErrEmptyColumn
	}
	s, okS := ParseDate(start)
	if start != "" && !okS {
		return fmt.Errorf("%s: %w %q", column, ErrInvalidDate, start)
	}
	e, okE := ParseDate(end)
	if end != "" && !okE {
		return fmt.Errorf("%s: %w %q", column, ErrInvalidDate, end)
	}
	if okS && okE && s.After(e) {
		return fmt.Errorf("%s: %w", column, ErrInvertedDates)
	}
	p.filters[column] = dashtypes.FilterSpec{Type: dashtypes.FilterDateRange, Start: start, End: end}
	return nil
}

// SetCategories restricts a column to the given values.
func (p *Panel) SetCategories(column string, values []string) error {
	if column == "" {
		return ErrEmptyColumn
	}
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("%s: %w", column, ErrNoCategories)
	}
	p.filters[column] = dashtypes.FilterSpec{Type: dashtypes.FilterCategorical, Values: kept}
	return nil
}

// Remove drops the predicate on one column.
func (p *Panel) Remove(column string) {
	delete(p.filters, column)
}

// Clear drops every predicate. The next Filters call yields an empty map.
func (p *Panel) Clear() {
	p.filters = dashtypes.FilterMap{}
}

// Filters returns a copy of the request body. It is never nil.
func (p *Panel) Filters() dashtypes.FilterMap {
	out := make(dashtypes.FilterMap, len(p.filters))
	for k, v := range p.filters {
		out[k] = v
	}
	return out
}

// Columns returns the filtered column names, sorted.
func (p *Panel) Columns() []string {
	names := make([]string, 0, len(p.filters))
	for k := range p.filters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply parses expr with ParseExpr and records the predicate.
func (p *Panel) Apply(expr string) error {
	column, spec, err := ParseExpr(expr)
	if err != nil {
		return err
	}
	switch spec.Type {
	case dashtypes.FilterRange:
		return p.SetRange(column, spec.Min, spec.Max)
	case dashtypes.FilterDateRange:
		return p.SetDateRange(column, spec.Start, spec.End)
	default:
		return p.SetCategories(column, spec.Values)
	}
}

// ParseExpr parses a command-line filter expression:
//
//	region=north,south          categorical
//	sales:100..500              numeric range, either bound may be omitted
//	order_date@2024-01-01..2024-03-31   date range
func ParseExpr(expr string) (string, dashtypes.FilterSpec, error) {
	expr = strings.TrimSpace(expr)
	idx := strings.IndexAny(expr, "=:@")
	if idx <= 0 {
		return "", dashtypes.FilterSpec{}, fmt.Errorf("%w %q: expected col=a,b, col:min..max or col@start..end", ErrInvalidFilterEx, expr)
	}
	column := strings.TrimSpace(expr[:idx])
	rest := strings.TrimSpace(expr[idx+1:])

	switch expr[idx] {
	case '=':
		values := strings.Split(rest, ",")
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		return column, dashtypes.FilterSpec{Type: dashtypes.FilterCategorical, Values: values}, nil

	case ':':
		lo, hi, err := splitRange(rest)
		if err != nil {
			return "", dashtypes.FilterSpec{}, fmt.Errorf("%s: %w", column, err)
		}
		spec := dashtypes.FilterSpec{Type: dashtypes.FilterRange}
		if lo != "" {
			f, err := strconv.ParseFloat(lo, 64)
			if err != nil {
				return "", dashtypes.FilterSpec{}, fmt.Errorf("%s: %w %q", column, ErrInvalidFilterEx, lo)
			}
			spec.Min = &f
		}
		if hi != "" {
			f, err := strconv.ParseFloat(hi, 64)
			if err != nil {
				return "", dashtypes.FilterSpec{}, fmt.Errorf("%s: %w %q", column, ErrInvalidFilterEx, hi)
			}
			spec.Max = &f
		}
		return column, spec, nil

	default:
		start, end, err := splitRange(rest)
		if err != nil {
			return "", dashtypes.FilterSpec{}, fmt.Errorf("%s: %w", column, err)
		}
		return column, dashtypes.FilterSpec{Type: dashtypes.FilterDateRange, Start: start, End: end}, nil
	}
}

func splitRange(s string) (string, string, error) {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return "", "", fmt.Errorf("%w %q: missing ..", ErrInvalidFilterEx, s)
	}
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return "", "", fmt.Errorf("%w %q: empty range", ErrInvalidFilterEx, s)
	}
	return lo, hi, nil
}
