package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"autodash/internal/dashboard"
	"autodash/internal/filter"
	"autodash/internal/history"
	"autodash/internal/notes"
	"autodash/internal/render"
	"autodash/pkg/dashtypes"
)

// withDashboard opens the dashboard, runs fn and saves the result even when fn
// fails, since failures are recorded in the transcript.
func (c *cli) withDashboard(fn func(a *app, d *dashboard.Dashboard) error) error {
	a := c.app
	d, err := a.openDashboard()
	if err != nil {
		return err
	}
	runErr := fn(a, d)
	if err := a.saveDashboard(d); err != nil {
		return err
	}
	return runErr
}

func newChartsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "charts",
		Aliases: []string{"ls"},
		Short:   "List the charts of the active dashboard",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			a.printCharts(d)
			a.printStatus(d)
			return nil
		},
	}
}

func newRenderCmd(c *cli) *cobra.Command {
	var output string
	var width, height int
	cmd := &cobra.Command{
		Use:   "render <chart>",
		Short: "Render a chart to PNG, asking the backend to fix it once if it fails",
		Long: `Render a chart to a PNG file. A chart without a figure, or one that fails to
render, is sent to the backend for a one-time fix; a successful fix replaces the
chart's code and figure. KPI cards are also printed to the terminal.

A chart is referenced by ID, 1-based position or title prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				chart, err := resolveChart(d, args[0])
				if err != nil {
					return err
				}
				if chart.IsKPI() {
					fmt.Fprintln(a.out, render.KPICard(&chart, kpiCardWidth))
				}

				a.healer.Options.Width, a.healer.Options.Height = width, height
				var buf bytes.Buffer
				if err := a.healer.Render(cmd.Context(), &chart, &buf); err != nil {
					if a.healer.Attempted(chart.ID) {
						d.MarkFixAttempted(chart.ID)
					}
					var rerr *render.Error
					if errors.As(err, &rerr) {
						return fmt.Errorf("%s: %s", chart.DisplayTitle(), rerr.Message)
					}
					return err
				}

				path := output
				if path == "" {
					path = chart.ID + ".png"
				}
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintln(a.out, a.theme.Success.Render("Wrote "+path))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file [default: <chart-id>.png]")
	cmd.Flags().IntVar(&width, "width", render.DefaultWidth, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", render.DefaultHeight, "Image height in pixels")
	return cmd
}

func newAddChartCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-chart <query>",
		Short: "Add one chart described in natural language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				chart, err := d.AddChart(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.chartLine(d, chart))
				return nil
			})
		},
	}
}

func newAddKPICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-kpi <query>",
		Short: "Add a KPI card described in natural language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				chart, err := d.AddKPI(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, render.KPICard(&chart, kpiCardWidth))
				return nil
			})
		},
	}
}

func newEditKPICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "edit-kpi <chart> <query>",
		Short: "Change a KPI card in place",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				target, err := resolveChart(d, args[0])
				if err != nil {
					return err
				}
				if !target.IsKPI() {
					return fmt.Errorf("%s is not a KPI card", target.DisplayTitle())
				}
				chart, err := d.EditKPI(cmd.Context(), target.ID, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, render.KPICard(&chart, kpiCardWidth))
				return nil
			})
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <chart>",
		Aliases: []string{"rm"},
		Short:   "Delete a chart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				chart, err := resolveChart(d, args[0])
				if err != nil {
					return err
				}
				if err := d.DeleteChart(cmd.Context(), chart.ID); err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.theme.Muted.Render("Deleted "+chart.DisplayTitle()))
				return nil
			})
		},
	}
}

func newUndoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the chart array before the last change",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				if err := d.Undo(); err != nil {
					if errors.Is(err, history.ErrNothingToUndo) {
						fmt.Fprintln(a.out, a.theme.Muted.Render("Nothing to undo"))
						return nil
					}
					return err
				}
				a.printCharts(d)
				return nil
			})
		},
	}
}

func newRedoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply a change undone with undo",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				if err := d.Redo(); err != nil {
					if errors.Is(err, history.ErrNothingToRedo) {
						fmt.Fprintln(a.out, a.theme.Muted.Render("Nothing to redo"))
						return nil
					}
					return err
				}
				a.printCharts(d)
				return nil
			})
		},
	}
}

func newFilterCmd(c *cli) *cobra.Command {
	var clear bool
	var remove []string
	cmd := &cobra.Command{
		Use:   "filter <chart> [expr...]",
		Short: "Filter the data behind a chart",
		Long: `Add predicates to a chart's filters and regenerate it. Expressions:

  region=north,south                    categorical values
  sales:100..500                        numeric range, either bound may be omitted
  order_date@2024-01-01..2024-03-31     date range

With no expressions the current filters are shown. "autodash columns" lists
the filter each column supports.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				chart, err := resolveChart(d, args[0])
				if err != nil {
					return err
				}
				exprs := args[1:]

				if clear {
					if _, err := d.ClearFilter(cmd.Context(), chart.ID); err != nil {
						return err
					}
					fmt.Fprintln(a.out, a.theme.Muted.Render("Cleared filters on "+chart.DisplayTitle()))
					return nil
				}

				panel := filter.NewPanel(d.Filters(chart.ID))
				if len(exprs) == 0 && len(remove) == 0 {
					a.printFilters(panel.Filters())
					return nil
				}
				for _, col := range remove {
					panel.Remove(col)
				}
				for _, expr := range exprs {
					if err := panel.Apply(expr); err != nil {
						return err
					}
				}

				updated, err := d.ApplyFilter(cmd.Context(), chart.ID, panel.Filters())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.chartLine(d, updated))
				a.printFilters(panel.Filters())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every filter from the chart")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "Drop the filter on these columns")
	return cmd
}

func (a *app) printFilters(filters dashtypes.FilterMap) {
	if len(filters) == 0 {
		fmt.Fprintln(a.out, a.theme.Muted.Render("No filters"))
		return
	}
	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		fmt.Fprintf(a.out, "  %s %s\n", a.theme.Title.Render(col), describeFilter(filters[col]))
	}
}

func describeFilter(spec dashtypes.FilterSpec) string {
	switch spec.Type {
	case dashtypes.FilterRange:
		lo, hi := "", ""
		if spec.Min != nil {
			lo = fmt.Sprintf("%g", *spec.Min)
		}
		if spec.Max != nil {
			hi = fmt.Sprintf("%g", *spec.Max)
		}
		return lo + ".." + hi
	case dashtypes.FilterDateRange:
		return spec.Start + ".." + spec.End
	default:
		return "in " + strings.Join(spec.Values, ", ")
	}
}

func newNotesCmd(c *cli) *cobra.Command {
	var set, appendText string
	var edit bool
	cmd := &cobra.Command{
		Use:   "notes <chart>",
		Short: "Show or edit the notes attached to a chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			chart, err := resolveChart(d, args[0])
			if err != nil {
				return err
			}

			panel := notes.NewPanel(a.client, d, d.DatasetID(), chart.ID)
			text, err := panel.Load(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case edit:
				edited, err := a.editor.Edit(cmd.Context(), chart.ID, text)
				if err != nil {
					return err
				}
				panel.Edit(edited)
			case cmd.Flags().Changed("set"):
				panel.Edit(set)
			case appendText != "":
				if strings.TrimSpace(text) == "" {
					panel.Edit(appendText)
				} else {
					panel.Edit(strings.TrimRight(text, "\n") + "\n\n" + appendText)
				}
			}
			if err := panel.Close(cmd.Context()); err != nil {
				return err
			}
			a.printNotes(chart, panel.Text())
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "Replace the notes")
	cmd.Flags().StringVar(&appendText, "append", "", "Append a paragraph to the notes")
	cmd.Flags().BoolVarP(&edit, "edit", "e", false, "Edit the notes in $EDITOR")
	cmd.MarkFlagsMutuallyExclusive("set", "append", "edit")
	return cmd
}

func newInsightsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <chart>",
		Short: "Generate insights for a chart and append them to its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d, err := a.openDashboard()
			if err != nil {
				return err
			}
			chart, err := resolveChart(d, args[0])
			if err != nil {
				return err
			}

			panel := notes.NewPanel(a.client, d, d.DatasetID(), chart.ID)
			if _, err := panel.Load(cmd.Context()); err != nil {
				return err
			}
			text, err := panel.Insights(cmd.Context())
			if err != nil && text == "" {
				return err
			}
			a.printNotes(chart, text)
			return err
		},
	}
}

func (a *app) printNotes(chart dashtypes.ChartSpec, text string) {
	fmt.Fprintln(a.out, a.theme.Title.Render(chart.DisplayTitle()))
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(a.out, a.theme.Muted.Render("No notes"))
		return
	}
	fmt.Fprintln(a.out, a.markdown.RenderOrPlain(text, a.theme.Name))
}
