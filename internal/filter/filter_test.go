package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodash/pkg/dashtypes"
)

func ptr(f float64) *float64 { return &f }

func TestInferColumn_Numeric(t *testing.T) {
	col := InferColumn("sales", []any{10.0, "25", nil, "", 3.5, "1,000"})
	assert.Equal(t, dashtypes.ColumnNumeric, col.Kind)
	assert.Equal(t, 3.5, col.Min)
	assert.Equal(t, 1000.0, col.Max)
}

func TestInferColumn_Date(t *testing.T) {
	col := InferColumn("order_date", []any{"2024-03-01", "01/15/2024", "2024-02-10 08:30:00", "2024-04-01T10:00:00Z"})
	assert.Equal(t, dashtypes.ColumnDate, col.Kind)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), col.Start)
	assert.Equal(t, time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), col.End)
}

func TestInferColumn_Categorical(t *testing.T) {
	col := InferColumn("region", []any{"north", "south", "north", "east"})
	assert.Equal(t, dashtypes.ColumnCategorical, col.Kind)
	assert.Equal(t, []string{"north", "south", "east"}, col.Categories)
}

func TestInferColumn_MixedFallsBackToCategorical(t *testing.T) {
	col := InferColumn("code", []any{1.0, "2024-01-01", "x"})
	assert.Equal(t, dashtypes.ColumnCategorical, col.Kind)
	assert.Equal(t, []string{"1", "2024-01-01", "x"}, col.Categories)
}

func TestInferColumn_UsesOnlyFirstTenValues(t *testing.T) {
	values := make([]any, 0, 12)
	for i := 0; i < SampleSize; i++ {
		values = append(values, float64(i))
	}
	values = append(values, "not a number", 999.0)

	col := InferColumn("n", values)
	assert.Equal(t, dashtypes.ColumnNumeric, col.Kind)
	assert.Equal(t, 9.0, col.Max)
}

func TestInferColumn_EmptySample(t *testing.T) {
	col := InferColumn("blank", []any{nil, "", "  "})
	assert.Equal(t, dashtypes.ColumnCategorical, col.Kind)
	assert.Empty(t, col.Categories)
}

func TestInferColumns(t *testing.T) {
	rows := []dashtypes.Row{
		{"region": "north", "sales": 10.0},
		{"region": "south", "sales": 20.0},
	}
	cols := InferColumns([]string{"sales", "region"}, rows)
	require.Len(t, cols, 2)
	assert.Equal(t, "sales", cols[0].Name)
	assert.Equal(t, dashtypes.ColumnNumeric, cols[0].Kind)
	assert.Equal(t, dashtypes.ColumnCategorical, cols[1].Kind)
}

func TestPanel_BuildsFilterMap(t *testing.T) {
	p := NewPanel(nil)
	require.NoError(t, p.SetRange("sales", ptr(10), ptr(500)))
	require.NoError(t, p.SetDateRange("order_date", "2024-01-01", "2024-03-31"))
	require.NoError(t, p.SetCategories("region", []string{"north", " ", "south"}))

	filters := p.Filters()
	assert.Equal(t, dashtypes.FilterSpec{Type: dashtypes.FilterRange, Min: ptr(10), Max: ptr(500)}, filters["sales"])
	assert.Equal(t, dashtypes.FilterSpec{Type: dashtypes.FilterDateRange, Start: "2024-01-01", End: "2024-03-31"}, filters["order_date"])
	assert.Equal(t, []string{"north", "south"}, filters["region"].Values)
	assert.Equal(t, []string{"order_date", "region", "sales"}, p.Columns())

	p.Remove("sales")
	assert.NotContains(t, p.Filters(), "sales")
}

func TestPanel_Validation(t *testing.T) {
	p := NewPanel(nil)
	assert.ErrorIs(t, p.SetRange("sales", ptr(5), ptr(1)), ErrInvertedRange)
	assert.ErrorIs(t, p.SetDateRange("d", "2024-05-01", "2024-01-01"), ErrInvertedDates)
	assert.ErrorIs(t, p.SetDateRange("d", "yesterday", ""), ErrInvalidDate)
	assert.ErrorIs(t, p.SetCategories("region", []string{"", " "}), ErrNoCategories)
	assert.ErrorIs(t, p.SetRange("", nil, nil), ErrEmptyColumn)
	assert.Empty(t, p.Filters())
}

func TestPanel_OpenBounds(t *testing.T) {
	p := NewPanel(nil)
	require.NoError(t, p.SetRange("sales", nil, ptr(100)))
	require.NoError(t, p.SetDateRange("d", "2024-01-01", ""))
	assert.Nil(t, p.Filters()["sales"].Min)
	assert.Equal(t, "", p.Filters()["d"].End)
}

func TestPanel_ClearYieldsEmptyNonNilMap(t *testing.T) {
	p := NewPanel(dashtypes.FilterMap{"region": {Type: dashtypes.FilterCategorical, Values: []string{"north"}}})
	require.Len(t, p.Filters(), 1)

	p.Clear()
	filters := p.Filters()
	assert.NotNil(t, filters)
	assert.Empty(t, filters)
}

func TestPanel_CopiesSeed(t *testing.T) {
	seed := dashtypes.FilterMap{"a": {Type: dashtypes.FilterCategorical, Values: []string{"x"}}}
	p := NewPanel(seed)
	p.Remove("a")
	assert.Contains(t, seed, "a")
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		expr   string
		column string
		spec   dashtypes.FilterSpec
	}{
		{"region=north,south", "region", dashtypes.FilterSpec{Type: dashtypes.FilterCategorical, Values: []string{"north", "south"}}},
		{"sales:100..500", "sales", dashtypes.FilterSpec{Type: dashtypes.FilterRange, Min: ptr(100), Max: ptr(500)}},
		{"sales:..500", "sales", dashtypes.FilterSpec{Type: dashtypes.FilterRange, Max: ptr(500)}},
		{"order_date@2024-01-01..2024-02-01", "order_date", dashtypes.FilterSpec{Type: dashtypes.FilterDateRange, Start: "2024-01-01", End: "2024-02-01"}},
		{" city = Paris ", "city", dashtypes.FilterSpec{Type: dashtypes.FilterCategorical, Values: []string{"Paris"}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			column, spec, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.column, column)
			assert.Equal(t, tt.spec, spec)
		})
	}
}

func TestParseExpr_Invalid(t *testing.T) {
	for _, expr := range []string{"", "region", "=north", "sales:100", "sales:..", "sales:a..b", "d@2024-01-01"} {
		t.Run(expr, func(t *testing.T) {
			_, _, err := ParseExpr(expr)
			assert.ErrorIs(t, err, ErrInvalidFilterEx)
		})
	}
}

func TestPanel_Apply(t *testing.T) {
	p := NewPanel(nil)
	require.NoError(t, p.Apply("region=north"))
	require.NoError(t, p.Apply("sales:1..2"))
	assert.ErrorIs(t, p.Apply("sales:9..2"), ErrInvertedRange)
	assert.ErrorIs(t, p.Apply("region=,"), ErrNoCategories)
	assert.Len(t, p.Filters(), 2)
}
