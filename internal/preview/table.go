package preview

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"autodash/pkg/dashtypes"
)

const (
	defaultWidth = 100
	minColumn    = 4
	gap          = "  "
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// TerminalWidth returns the width of stdout, or a fallback when it is not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w < 40 {
		return defaultWidth
	}
	return w
}

// Table lays rows out in aligned columns no wider than width in total.
// Cells that do not fit are truncated with an ellipsis.
func Table(columns []string, rows []dashtypes.Row, width int) string {
	if len(columns) == 0 {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(columns))
		for j, col := range columns {
			cells[i][j] = Cell(row[col])
		}
	}

	widths := make([]int, len(columns))
	for j, col := range columns {
		widths[j] = runewidth.StringWidth(col)
		for i := range cells {
			widths[j] = max(widths[j], runewidth.StringWidth(cells[i][j]))
		}
	}
	fit(widths, width-len(gap)*(len(columns)-1))

	var b strings.Builder
	header := make([]string, len(columns))
	for j, col := range columns {
		header[j] = pad(col, widths[j])
	}
	b.WriteString(headerStyle.Render(strings.Join(header, gap)))
	b.WriteByte('\n')

	rule := make([]string, len(columns))
	for j := range columns {
		rule[j] = strings.Repeat("-", widths[j])
	}
	b.WriteString(strings.Join(rule, gap))
	b.WriteByte('\n')

	line := make([]string, len(columns))
	for i := range cells {
		for j := range columns {
			line[j] = pad(cells[i][j], widths[j])
		}
		b.WriteString(strings.TrimRight(strings.Join(line, gap), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// fit shrinks the widest columns until the total fits budget.
func fit(widths []int, budget int) {
	total := 0
	for _, w := range widths {
		total += w
	}
	for total > budget {
		widest := 0
		for j := range widths {
			if widths[j] > widths[widest] {
				widest = j
			}
		}
		if widths[widest] <= minColumn {
			return
		}
		widths[widest]--
		total--
	}
}

func pad(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "…")
	}
	return runewidth.FillRight(s, w)
}

// Cell formats a row value for display.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := dashtypes.Number(v); ok {
		return Cell(f)
	}
	return ""
}
