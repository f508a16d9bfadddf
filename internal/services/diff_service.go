package services

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffService renders line diffs of chart code when an edit or a fix
// replaces it.
type DiffService struct {
	initialized bool
	theme       *Theme
}

// NewDiffService creates a diff service.
func NewDiffService() *DiffService {
	return &DiffService{}
}

// Name returns the service name "diff" for registration.
func (d *DiffService) Name() string {
	return "diff"
}

// Initialize sets up the DiffService for operation.
func (d *DiffService) Initialize() error {
	d.initialized = true
	return nil
}

// SetTheme styles added and removed lines. A nil theme prints plain text.
func (d *DiffService) SetTheme(theme *Theme) {
	d.theme = theme
}

// Diff returns a unified-style line diff of before and after. Unchanged lines
// are prefixed with two spaces. It returns "" when the texts are equal.
func (d *DiffService) Diff(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, diff := range diffs {
		prefix := "  "
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == "" {
				continue
			}
			text := prefix + strings.TrimSuffix(line, "\n")
			out.WriteString(d.style(diff.Type, text))
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func (d *DiffService) style(op diffmatchpatch.Operation, text string) string {
	if d.theme == nil {
		return text
	}
	switch op {
	case diffmatchpatch.DiffDelete:
		return d.theme.Error.Render(text)
	case diffmatchpatch.DiffInsert:
		return d.theme.Success.Render(text)
	default:
		return d.theme.Muted.Render(text)
	}
}

// Stats counts inserted and deleted lines.
func (d *DiffService) Stats(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	for _, diff := range dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines) {
		n := strings.Count(diff.Text, "\n")
		if !strings.HasSuffix(diff.Text, "\n") && diff.Text != "" {
			n++
		}
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func init() {
	if err := GlobalRegistry.RegisterService(NewDiffService()); err != nil {
		panic(fmt.Sprintf("failed to register diff service: %v", err))
	}
}
