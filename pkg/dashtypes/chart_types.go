// Package dashtypes defines the view-model types shared across the AutoDash client.
// This file contains the chart and figure types produced by the backend and
// tracked by the dashboard orchestrator.
package dashtypes

// ChartTypeKPICard is the chart_type value of a KPI card: a single scalar indicator.
const ChartTypeKPICard = "kpi_card"

// Trace is one Plotly trace. The backend owns the schema, so the raw map is kept
// and read through typed accessors.
type Trace map[string]any

// Type returns the trace type, defaulting to "scatter" like Plotly does.
func (t Trace) Type() string {
	if s, ok := t["type"].(string); ok && s != "" {
		return s
	}
	return "scatter"
}

// Name returns the trace legend name.
func (t Trace) Name() string {
	s, _ := t["name"].(string)
	return s
}

// Mode returns the trace mode (e.g. "lines", "markers", "number").
func (t Trace) Mode() string {
	s, _ := t["mode"].(string)
	return s
}

// Array returns the named field as a slice when it holds one.
func (t Trace) Array(key string) []any {
	switch v := t[key].(type) {
	case []any:
		return v
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

// X returns the x values.
func (t Trace) X() []any { return t.Array("x") }

// Y returns the y values.
func (t Trace) Y() []any { return t.Array("y") }

// Values returns pie slice values.
func (t Trace) Values() []any { return t.Array("values") }

// Labels returns pie slice labels.
func (t Trace) Labels() []any { return t.Array("labels") }

// Value returns an indicator's scalar value, or nil when unset.
func (t Trace) Value() any {
	return t["value"]
}

// Has reports whether the key is present on the trace.
func (t Trace) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Figure is a renderable Plotly figure object.
type Figure struct {
	Data   []Trace        `json:"data"`
	Layout map[string]any `json:"layout,omitempty"`
}

// Title returns the layout title whether it is a plain string or a {text: ...} object.
func (f *Figure) Title() string {
	if f == nil || f.Layout == nil {
		return ""
	}
	switch v := f.Layout["title"].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["text"].(string)
		return s
	}
	return ""
}

// ChartSpec is the client view-model for one chart or KPI card.
type ChartSpec struct {
	ID             string  `json:"id"`                        // Stable client-side identity, never sent as an index
	ChartSpec      string  `json:"chart_spec"`                // Source code that produced the figure
	ChartType      string  `json:"chart_type"`                // bar, line, pie, kpi_card, ...
	Title          string  `json:"title"`                     // Display title
	Figure         *Figure `json:"figure,omitempty"`          // Renderable figure, nil when generation failed
	ChartIndex     int     `json:"chart_index"`               // Position in the array; what the backend addresses
	ExecutionError string  `json:"execution_error,omitempty"` // Backend-side execution failure
	FixAttempted   bool    `json:"fix_attempted,omitempty"`   // One-shot auto-fix guard for this chart's lifetime
}

// IsKPI reports whether the chart is a KPI card.
func (c *ChartSpec) IsKPI() bool {
	return c.ChartType == ChartTypeKPICard
}

// DisplayTitle returns the chart title, falling back to the figure title.
func (c *ChartSpec) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if t := c.Figure.Title(); t != "" {
		return t
	}
	return "Untitled chart"
}
