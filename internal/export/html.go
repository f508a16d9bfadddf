package export

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"autodash/internal/render"
	"autodash/pkg/dashtypes"
)

// HTML writes an offline dashboard page. Bar, line, scatter, histogram and pie
// charts become interactive ECharts; KPI cards are written as text blocks.
// Charts that cannot be converted are listed at the bottom of the page.
func HTML(w io.Writer, title string, specs []dashtypes.ChartSpec, palette []string) error {
	page := components.NewPage()
	page.PageTitle = title
	if page.PageTitle == "" {
		page.PageTitle = "AutoDash dashboard"
	}

	var kpis []string
	var skipped []string
	added := 0
	for i := range specs {
		spec := &specs[i]
		if spec.IsKPI() || firstType(spec.Figure) == "indicator" {
			kpis = append(kpis, kpiBlock(spec))
			continue
		}
		chart, err := echart(spec, palette)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", spec.DisplayTitle(), err))
			continue
		}
		page.AddCharts(chart)
		added++
	}
	if added == 0 && len(kpis) == 0 {
		return ErrNothingCaptured
	}

	var buf strings.Builder
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}

	out := buf.String()
	header := fmt.Sprintf("<h1 class=\"autodash-title\">%s</h1>\n", html.EscapeString(page.PageTitle))
	if len(kpis) > 0 {
		header += "<div class=\"autodash-kpis\">\n" + strings.Join(kpis, "\n") + "\n</div>\n"
	}
	out = strings.Replace(out, "<body>", "<body>\n"+header, 1)
	if len(skipped) > 0 {
		var b strings.Builder
		b.WriteString("<ul class=\"autodash-skipped\">\n")
		for _, s := range skipped {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(s))
		}
		b.WriteString("</ul>\n")
		out = strings.Replace(out, "</body>", b.String()+"</body>", 1)
	}
	out = strings.Replace(out, "</head>", pageCSS+"</head>", 1)

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

const pageCSS = `<style>
.autodash-title { font-family: sans-serif; margin: 16px; }
.autodash-kpis { display: flex; flex-wrap: wrap; gap: 12px; margin: 16px; }
.autodash-kpi { border: 1px solid #ddd; border-radius: 8px; padding: 12px 16px; min-width: 160px; font-family: sans-serif; }
.autodash-kpi .label { color: #666; font-size: 13px; }
.autodash-kpi .value { font-size: 28px; font-weight: bold; }
.autodash-kpi .error { color: #c0392b; }
.autodash-skipped { color: #888; font-family: sans-serif; }
</style>
`

func kpiBlock(spec *dashtypes.ChartSpec) string {
	title := html.EscapeString(spec.DisplayTitle())
	value := `<div class="value error">No value</div>`
	if spec.ExecutionError != "" {
		value = fmt.Sprintf(`<div class="value error">%s</div>`, html.EscapeString(render.Sanitize(spec.ExecutionError)))
	} else if spec.Figure != nil {
		for _, tr := range spec.Figure.Data {
			if tr.Type() != "indicator" {
				continue
			}
			if v, ok := dashtypes.Number(tr.Value()); ok {
				value = fmt.Sprintf(`<div class="value">%s</div>`, html.EscapeString(render.FormatValue(tr, v)))
			}
			break
		}
	}
	return fmt.Sprintf(`<div class="autodash-kpi"><div class="label">%s</div>%s</div>`, title, value)
}

func firstType(fig *dashtypes.Figure) string {
	if fig == nil || len(fig.Data) == 0 {
		return ""
	}
	return fig.Data[0].Type()
}

func globalOpts(spec *dashtypes.ChartSpec, palette []string) []charts.GlobalOpts {
	o := []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: spec.DisplayTitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "100%",
			Height: "420px",
		}),
	}
	if len(spec.Figure.Data) > 1 {
		o = append(o, charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}))
	}
	if len(palette) > 0 {
		o = append(o, charts.WithColorsOpts(opts.Colors(palette)))
	}
	return o
}

func echart(spec *dashtypes.ChartSpec, palette []string) (components.Charter, error) {
	if render.IsBlankFigure(spec.Figure) {
		return nil, fmt.Errorf("no data")
	}
	switch kind := firstType(spec.Figure); kind {
	case "bar":
		return barChart(spec, palette), nil
	case "scatter", "scattergl", "line":
		if strings.Contains(spec.Figure.Data[0].Mode(), "lines") || kind == "line" || spec.ChartType == "line" {
			return lineChart(spec, palette), nil
		}
		return scatterChart(spec, palette), nil
	case "pie":
		return pieChart(spec, palette)
	case "histogram":
		return histogramChart(spec, palette)
	default:
		return nil, fmt.Errorf("unsupported trace type %q", kind)
	}
}

func labels(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			out[i] = fmt.Sprintf("%.0f", f)
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func traceName(tr dashtypes.Trace, i int) string {
	if n := tr.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("Series %d", i+1)
}

func barChart(spec *dashtypes.ChartSpec, palette []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(spec, palette)...)

	horizontal := spec.Figure.Data[0]["orientation"] == "h"
	cats := spec.Figure.Data[0].X()
	if horizontal {
		cats = spec.Figure.Data[0].Y()
	}
	bar.SetXAxis(labels(cats))
	for i, tr := range spec.Figure.Data {
		raw := tr.Y()
		if horizontal {
			raw = tr.X()
		}
		data := make([]opts.BarData, len(raw))
		for j, v := range raw {
			f, _ := dashtypes.Number(v)
			data[j] = opts.BarData{Value: f}
		}
		bar.AddSeries(traceName(tr, i), data)
	}
	if horizontal {
		bar.XYReversal()
	}
	return bar
}

func lineChart(spec *dashtypes.ChartSpec, palette []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(spec, palette)...)
	line.SetXAxis(labels(spec.Figure.Data[0].X()))
	for i, tr := range spec.Figure.Data {
		raw := tr.Y()
		data := make([]opts.LineData, len(raw))
		for j, v := range raw {
			f, _ := dashtypes.Number(v)
			data[j] = opts.LineData{Value: f}
		}
		line.AddSeries(traceName(tr, i), data)
	}
	return line
}

func scatterChart(spec *dashtypes.ChartSpec, palette []string) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(globalOpts(spec, palette)...)
	scatter.SetXAxis(labels(spec.Figure.Data[0].X()))
	for i, tr := range spec.Figure.Data {
		raw := tr.Y()
		data := make([]opts.ScatterData, len(raw))
		for j, v := range raw {
			f, _ := dashtypes.Number(v)
			data[j] = opts.ScatterData{Value: f}
		}
		scatter.AddSeries(traceName(tr, i), data)
	}
	return scatter
}

func pieChart(spec *dashtypes.ChartSpec, palette []string) (*charts.Pie, error) {
	tr := spec.Figure.Data[0]
	names := labels(tr.Labels())
	values := tr.Values()
	if len(values) == 0 {
		return nil, fmt.Errorf("pie has no values")
	}
	data := make([]opts.PieData, 0, len(values))
	for i, v := range values {
		f, ok := dashtypes.Number(v)
		if !ok {
			continue
		}
		name := fmt.Sprintf("Slice %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		data = append(data, opts.PieData{Name: name, Value: f})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(globalOpts(spec, palette)...)
	pie.AddSeries(traceName(tr, 0), data)
	return pie, nil
}

func histogramChart(spec *dashtypes.ChartSpec, palette []string) (*charts.Bar, error) {
	tr := spec.Figure.Data[0]
	h, err := dashtypes.BinTrace(tr)
	if err != nil {
		return nil, err
	}

	cats := make([]string, len(h.Counts))
	data := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		cats[i] = fmt.Sprintf("%.4g", h.BinStart(i))
		data[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(spec, palette)...)
	bar.SetXAxis(cats).AddSeries(traceName(tr, 0), data)
	return bar, nil
}
