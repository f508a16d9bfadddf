package render

import "autodash/pkg/dashtypes"

// dataKeys are the trace fields that carry plotted data.
var dataKeys = []string{"x", "y", "values", "z", "lat", "lon"}

// IsBlankFigure reports whether a figure has nothing to draw: no trace with a
// non-empty data array, no binned histogram, and no indicator with a value.
func IsBlankFigure(fig *dashtypes.Figure) bool {
	if fig == nil {
		return true
	}
	for _, trace := range fig.Data {
		if trace == nil {
			continue
		}
		for _, key := range dataKeys {
			if nonEmpty(trace[key]) {
				return false
			}
		}
		if trace["nbinsx"] != nil {
			return false
		}
		if trace.Type() == "indicator" && trace.Value() != nil {
			return false
		}
	}
	return true
}

func nonEmpty(v any) bool {
	switch a := v.(type) {
	case []any:
		return len(a) > 0
	case []float64:
		return len(a) > 0
	case []string:
		return len(a) > 0
	case []int:
		return len(a) > 0
	case map[string]any:
		// Plotly typed arrays arrive as {"dtype": ..., "bdata": ...}.
		s, _ := a["bdata"].(string)
		return s != ""
	}
	return false
}
