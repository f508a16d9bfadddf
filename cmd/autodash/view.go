package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"autodash/internal/dashboard"
	"autodash/internal/preview"
	"autodash/internal/render"
	"autodash/internal/services"
	"autodash/pkg/dashtypes"
)

const kpiCardWidth = 24

// printMessages writes transcript entries. Assistant text is rendered as markdown.
func (a *app) printMessages(msgs []dashtypes.ChatMessage) {
	if !a.prefs.ChatVisible() {
		return
	}
	for _, m := range msgs {
		style := a.theme.MessageStyle(m.Type)
		switch m.Type {
		case dashtypes.MessageUser:
			fmt.Fprintln(a.out, style.Render("you: "+m.Message))
		case dashtypes.MessageError:
			line := "! " + m.Message
			if m.Failed && m.Retryable {
				line += a.theme.Muted.Render(fmt.Sprintf("  (autodash retry %s)", m.ID))
			}
			fmt.Fprintln(a.out, style.Render(line))
		default:
			fmt.Fprintln(a.out, a.markdown.RenderOrPlain(m.Message, a.theme.Name))
		}
		if m.MatchedChart != nil {
			fmt.Fprintln(a.out, a.theme.Muted.Render("  → "+m.MatchedChart.Title))
		}
		if m.HasCode() {
			fmt.Fprintln(a.out, a.theme.Code.Render(fmt.Sprintf("  [%s] autodash run %s", m.CodeType, m.ID)))
		}
	}
}

// printStatus writes the error banner and the billing notice when present.
func (a *app) printStatus(d *dashboard.Dashboard) {
	if b := d.Banner(); b.Message != "" && !a.prefs.BannerDismissed() {
		fmt.Fprintln(a.out, a.theme.Error.Render(b.Message))
	}
	if bill := d.Billing(); bill.Open {
		msg := bill.Message
		if msg == "" {
			msg = "Insufficient credits."
		}
		fmt.Fprintln(a.out, a.theme.Error.Render(msg))
		fmt.Fprintln(a.out, a.theme.Muted.Render(fmt.Sprintf("Required %.2f, balance %.2f (%s plan)", bill.Required, bill.Balance, bill.Plan)))
	}
}

// printCharts lists the dashboard in the preferred view mode.
func (a *app) printCharts(d *dashboard.Dashboard) {
	charts := d.Charts()
	if len(charts) == 0 {
		fmt.Fprintln(a.out, a.theme.Muted.Render("No charts yet. Ask a question with: autodash ask <query>"))
		return
	}
	if title := d.Title(); title != "" {
		fmt.Fprintln(a.out, a.theme.Title.Render(title))
	}

	if a.prefs.ViewMode() == services.ViewList {
		for _, c := range charts {
			fmt.Fprintln(a.out, a.chartLine(d, c))
		}
		return
	}

	var kpis []string
	var rest []string
	for _, c := range charts {
		if c.IsKPI() {
			kpis = append(kpis, render.KPICard(&c, kpiCardWidth))
			continue
		}
		rest = append(rest, a.chartLine(d, c))
	}
	perRow := preview.TerminalWidth() / (kpiCardWidth + 1)
	if perRow < 1 {
		perRow = 1
	}
	for i := 0; i < len(kpis); i += perRow {
		end := min(i+perRow, len(kpis))
		fmt.Fprintln(a.out, lipgloss.JoinHorizontal(lipgloss.Top, kpis[i:end]...))
	}
	if len(rest) > 0 {
		fmt.Fprintln(a.out, a.theme.CreateSimpleList(rest))
	}
}

func (a *app) chartLine(d *dashboard.Dashboard, c dashtypes.ChartSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s %s", c.ChartIndex+1, c.DisplayTitle(), a.theme.Muted.Render("("+c.ChartType+", "+c.ID+")"))
	switch {
	case c.ExecutionError != "":
		b.WriteString(" " + a.theme.Error.Render(render.Sanitize(c.ExecutionError)))
	case c.Figure == nil:
		b.WriteString(" " + a.theme.Error.Render("no figure"))
	case render.IsBlankFigure(c.Figure):
		b.WriteString(" " + a.theme.Muted.Render("no data"))
	}
	if filters := d.Filters(c.ID); len(filters) > 0 {
		cols := make([]string, 0, len(filters))
		for col := range filters {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		b.WriteString(" " + a.theme.Info.Render("[filtered: "+strings.Join(cols, ", ")+"]"))
	}
	return b.String()
}

// printExpected shows placeholders for charts still being generated.
func (a *app) printExpected(d *dashboard.Dashboard) {
	if n := d.Placeholders(); n > 0 {
		fmt.Fprintln(a.out, a.theme.Muted.Render(fmt.Sprintf("%d more expected", n)))
	}
}
