package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"autodash/pkg/dashtypes"
)

// Terminal KPI card styling.
var (
	kpiBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	kpiTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	kpiValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	kpiUpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	kpiDownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	kpiErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// minCardWidth keeps very narrow terminals from collapsing the card.
const minCardWidth = 16

// KPICard renders a KPI chart as a bordered terminal card of the given outer width.
func KPICard(chart *dashtypes.ChartSpec, width int) string {
	if width < minCardWidth {
		width = minCardWidth
	}
	inner := width - 4

	title := ansi.Truncate(chart.DisplayTitle(), inner, "…")
	lines := []string{kpiTitleStyle.Render(title)}

	trace, ok := indicatorTrace(chart.Figure)
	value, numeric := dashtypes.Number(trace.Value())
	switch {
	case !ok || trace.Value() == nil:
		msg := "No value"
		if chart.ExecutionError != "" {
			msg = Sanitize(chart.ExecutionError)
		}
		lines = append(lines, kpiErrorStyle.Render(ansi.Truncate(msg, inner, "…")))
	case !numeric:
		lines = append(lines, kpiValueStyle.Render(ansi.Truncate(fmt.Sprint(trace.Value()), inner, "…")))
	default:
		lines = append(lines, kpiValueStyle.Render(ansi.Truncate(FormatValue(trace, value), inner, "…")))
		if delta := formatDelta(trace, value); delta != "" {
			lines = append(lines, delta)
		}
	}

	return kpiBoxStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func indicatorTrace(fig *dashtypes.Figure) (dashtypes.Trace, bool) {
	if fig == nil {
		return dashtypes.Trace{}, false
	}
	for _, t := range fig.Data {
		if t.Type() == "indicator" {
			return t, true
		}
	}
	return dashtypes.Trace{}, false
}

func indicatorTitle(trace dashtypes.Trace) string {
	switch v := trace["title"].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["text"].(string)
		return s
	}
	return ""
}

// FormatValue formats an indicator value with its number prefix and suffix.
func FormatValue(trace dashtypes.Trace, v float64) string {
	prefix, suffix := "", ""
	if number, ok := trace["number"].(map[string]any); ok {
		prefix, _ = number["prefix"].(string)
		suffix, _ = number["suffix"].(string)
	}
	return prefix + humanize(v) + suffix
}

func humanize(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 1, 64) + "B"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	case v == math.Trunc(v):
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

func formatDelta(trace dashtypes.Trace, v float64) string {
	delta, ok := trace["delta"].(map[string]any)
	if !ok {
		return ""
	}
	ref, ok := dashtypes.Number(delta["reference"])
	if !ok || ref == 0 {
		return ""
	}
	change := (v - ref) / math.Abs(ref) * 100
	if change >= 0 {
		return kpiUpStyle.Render(fmt.Sprintf("▲ %.1f%%", change))
	}
	return kpiDownStyle.Render(fmt.Sprintf("▼ %.1f%%", -change))
}
