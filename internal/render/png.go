// Package render turns backend figures into images and terminal output, and
// wraps rendering with a one-shot automatic fix for charts that fail.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"autodash/pkg/dashtypes"
)

// Default image size in pixels.
const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// maxTicks caps categorical axis labels so they stay legible.
const maxTicks = 12

// Options controls image output.
type Options struct {
	Width   int
	Height  int
	Palette []string // Hex colours applied to series in order
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func (o Options) color(i int) (drawing.Color, bool) {
	if len(o.Palette) == 0 {
		return drawing.Color{}, false
	}
	hex := strings.TrimPrefix(o.Palette[i%len(o.Palette)], "#")
	return drawing.ColorFromHex(hex), true
}

// Renderer draws a figure to w.
type Renderer interface {
	Render(fig *dashtypes.Figure, w io.Writer, opts Options) error
}

// PNGRenderer draws figures as PNG images with go-chart. It supports bar, line,
// scatter, pie, histogram and indicator traces.
type PNGRenderer struct{}

// NewPNGRenderer returns a PNG renderer.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{}
}

// Render draws fig. Nothing is written to w unless rendering succeeds.
func (r *PNGRenderer) Render(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	if fig == nil {
		return errorf("figure is missing")
	}
	if len(fig.Data) == 0 {
		return errorf("figure has no traces")
	}

	var buf bytes.Buffer
	var err error
	switch kind := fig.Data[0].Type(); kind {
	case "bar":
		err = renderBar(fig, &buf, opts)
	case "scatter", "scattergl", "line":
		err = renderXY(fig, &buf, opts)
	case "pie":
		err = renderPie(fig, &buf, opts)
	case "histogram":
		err = renderHistogram(fig, &buf, opts)
	case "indicator":
		err = renderIndicator(fig, &buf, opts)
	default:
		return errorf("unsupported trace type %q", kind)
	}
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			return rerr
		}
		return errorf("%v", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func renderBar(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	var bars []chart.Value
	multi := len(fig.Data) > 1
	for i, trace := range fig.Data {
		if trace.Type() != "bar" {
			continue
		}
		labels, values := trace.X(), trace.Y()
		if s, _ := trace["orientation"].(string); s == "h" {
			labels, values = values, labels
		}
		if len(values) == 0 {
			return errorf("Invalid property specified for object of type bar: 'y'")
		}
		style := chart.Style{}
		if c, ok := opts.color(i); ok {
			style = chart.Style{FillColor: c, StrokeColor: c}
		}
		for j, raw := range values {
			v, ok := dashtypes.Number(raw)
			if !ok {
				return errorf("bar value %v at position %d is not numeric", raw, j)
			}
			label := fmt.Sprintf("%d", j+1)
			if j < len(labels) {
				label = fmt.Sprint(labels[j])
			}
			if multi && trace.Name() != "" {
				label = label + " (" + trace.Name() + ")"
			}
			bars = append(bars, chart.Value{Label: label, Value: v, Style: style})
		}
	}
	return drawBars(fig.Title(), bars, w, opts)
}

func drawBars(title string, bars []chart.Value, w io.Writer, opts Options) error {
	if len(bars) == 0 {
		return errorf("figure has no bars")
	}
	width, height := opts.size()

	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}

	barWidth := (width - 120) / (len(bars) * 2)
	if barWidth < 4 {
		barWidth = 4
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.05}},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}

func renderXY(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	width, height := opts.size()

	var (
		series []chart.Series
		ticks  []chart.Tick
		xs, ys []float64
	)
	for i, trace := range fig.Data {
		xRaw, yRaw := trace.X(), trace.Y()
		if len(yRaw) == 0 {
			return errorf("Invalid property specified for object of type scatter: 'y'")
		}
		x, labels := axisValues(xRaw, len(yRaw))
		if labels != nil && ticks == nil {
			ticks = categoryTicks(labels)
		}

		var px, py []float64
		for j, raw := range yRaw {
			v, ok := dashtypes.Number(raw)
			if !ok || j >= len(x) {
				continue
			}
			px = append(px, x[j])
			py = append(py, v)
		}
		if len(px) == 0 {
			return errorf("trace %d has no numeric points", i)
		}
		xs = append(xs, px...)
		ys = append(ys, py...)

		style := chart.Style{StrokeWidth: 2}
		if strings.Contains(trace.Mode(), "markers") && !strings.Contains(trace.Mode(), "lines") {
			style = chart.Style{StrokeWidth: 0, DotWidth: 4}
		}
		if c, ok := opts.color(i); ok {
			style.StrokeColor = c
			style.DotColor = c
		}
		series = append(series, chart.ContinuousSeries{Name: trace.Name(), XValues: px, YValues: py, Style: style})
	}

	xMin, xMax := padRange(xs)
	yMin, yMax := padRange(ys)
	ch := chart.Chart{
		Title:      fig.Title(),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Range: &chart.ContinuousRange{Min: xMin, Max: xMax}, Ticks: ticks},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: yMin, Max: yMax}},
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch.Render(chart.PNG, w)
}

// axisValues maps x values to positions. Non-numeric axes become category
// indices and the labels are returned for ticks.
func axisValues(raw []any, n int) ([]float64, []string) {
	if len(raw) == 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i)
		}
		return out, nil
	}

	numeric := make([]float64, len(raw))
	allNumeric := true
	for i, v := range raw {
		f, ok := dashtypes.Number(v)
		if !ok {
			allNumeric = false
			break
		}
		numeric[i] = f
	}
	if allNumeric {
		return numeric, nil
	}

	out := make([]float64, len(raw))
	labels := make([]string, len(raw))
	for i, v := range raw {
		out[i] = float64(i)
		labels[i] = fmt.Sprint(v)
	}
	return out, labels
}

func categoryTicks(labels []string) []chart.Tick {
	step := 1
	if len(labels) > maxTicks {
		step = int(math.Ceil(float64(len(labels)) / maxTicks))
	}
	ticks := make([]chart.Tick, 0, maxTicks+1)
	for i := 0; i < len(labels); i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}
	return ticks
}

func padRange(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func renderPie(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	width, height := opts.size()
	trace := fig.Data[0]

	raw := trace.Values()
	if len(raw) == 0 {
		return errorf("Invalid property specified for object of type pie: 'values'")
	}
	labels := trace.Labels()

	var (
		values []chart.Value
		total  float64
	)
	for i, r := range raw {
		v, ok := dashtypes.Number(r)
		if !ok || v < 0 {
			return errorf("pie value %v at position %d must be a non-negative number", r, i)
		}
		label := fmt.Sprintf("%d", i+1)
		if i < len(labels) {
			label = fmt.Sprint(labels[i])
		}
		value := chart.Value{Label: label, Value: v}
		if c, ok := opts.color(i); ok {
			value.Style = chart.Style{FillColor: c}
		}
		values = append(values, value)
		total += v
	}
	if total == 0 {
		return errorf("pie values sum to zero")
	}

	pc := chart.PieChart{
		Title:  fig.Title(),
		Width:  width,
		Height: height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

func renderHistogram(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	h, err := dashtypes.BinTrace(fig.Data[0])
	if err != nil {
		return errorf("%s", err.Error())
	}

	style := chart.Style{}
	if c, ok := opts.color(0); ok {
		style = chart.Style{FillColor: c, StrokeColor: c}
	}
	bars := make([]chart.Value, len(h.Counts))
	for i, c := range h.Counts {
		bars[i] = chart.Value{Label: fmt.Sprintf("%.4g", h.BinStart(i)), Value: float64(c), Style: style}
	}
	return drawBars(fig.Title(), bars, w, opts)
}

func renderIndicator(fig *dashtypes.Figure, w io.Writer, opts Options) error {
	trace := fig.Data[0]
	v, ok := dashtypes.Number(trace.Value())
	if !ok {
		return errorf("Invalid property specified for object of type indicator: 'value'")
	}
	title := fig.Title()
	if title == "" {
		title = indicatorTitle(trace)
	}
	style := chart.Style{}
	if c, ok := opts.color(0); ok {
		style = chart.Style{FillColor: c, StrokeColor: c}
	}
	return drawBars(title, []chart.Value{{Label: FormatValue(trace, v), Value: v, Style: style}}, w, opts)
}
