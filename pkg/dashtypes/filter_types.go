package dashtypes

// ColumnKind is the inferred type of a column for filtering purposes.
type ColumnKind string

// Column kinds.
const (
	ColumnNumeric     ColumnKind = "numeric"
	ColumnDate        ColumnKind = "date"
	ColumnCategorical ColumnKind = "categorical"
)

// FilterSpec is a single per-column predicate in the apply-filter request body.
// Only the fields matching Type are set.
type FilterSpec struct {
	Type   string   `json:"type" yaml:"type"` // range, date_range or categorical
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Start  string   `json:"start,omitempty" yaml:"start,omitempty"`
	End    string   `json:"end,omitempty" yaml:"end,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Filter type discriminators.
const (
	FilterRange       = "range"
	FilterDateRange   = "date_range"
	FilterCategorical = "categorical"
)

// FilterMap maps a column name to its predicate. An empty map clears filters.
type FilterMap map[string]FilterSpec
