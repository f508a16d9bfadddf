package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autodash/internal/filter"
	"autodash/internal/logger"
	"autodash/internal/preview"
	"autodash/internal/watch"
	"autodash/pkg/dashtypes"
)

func newUploadCmd(c *cli) *cobra.Command {
	var watchFile bool
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or Excel dataset and start a new dashboard",
		Long: `Upload a CSV or Excel file to the backend. The uploaded dataset becomes the
active dataset with an empty dashboard. With --watch the file is uploaded again
whenever it changes, until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			path := args[0]
			if !preview.Supported(path) {
				return fmt.Errorf("%w: %s (expected .csv, .xlsx or .xlsm)", preview.ErrUnsupportedFormat, path)
			}
			upload := func(ctx context.Context, path string) error {
				info, err := a.client.Upload(ctx, path)
				if err != nil {
					return err
				}
				if err := a.startDataset(info); err != nil {
					return err
				}
				a.printDataset(info)
				return nil
			}
			if err := upload(cmd.Context(), path); err != nil {
				return err
			}
			if !watchFile {
				return nil
			}

			w, err := watch.New(path, upload,
				watch.WithDebounce(debounce),
				watch.WithErrorHandler(func(err error) {
					fmt.Fprintln(a.out, a.theme.Error.Render("Re-upload failed: "+err.Error()))
				}),
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.theme.Muted.Render("Watching "+w.Path()+" for changes (Ctrl+C to stop)"))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watchFile, "watch", false, "Re-upload the file whenever it changes")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a re-upload")
	return cmd
}

func newSampleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Load the backend's sample dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			info, err := a.client.LoadSample(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.startDataset(info); err != nil {
				return err
			}
			a.printDataset(info)
			return nil
		},
	}
}

func (a *app) printDataset(info *dashtypes.DatasetInfo) {
	name := info.Filename
	if name == "" {
		name = info.DatasetID
	}
	fmt.Fprintln(a.out, a.theme.Success.Render(fmt.Sprintf("Loaded %s (%d rows, %d columns)", name, info.RowCount, len(info.ColumnNames))))
	fmt.Fprintln(a.out, a.theme.Muted.Render("dataset "+info.DatasetID))
	if len(info.Preview) > 0 {
		fmt.Fprint(a.out, preview.Table(info.ColumnNames, info.Preview, preview.TerminalWidth()))
	}
}

func newPreviewCmd(c *cli) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Preview a local file, or the active dataset when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if rows <= 0 {
				rows = a.cfg.PreviewRows
			}
			columns, data, total, err := a.previewRows(cmd.Context(), args, rows)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, preview.Table(columns, data, preview.TerminalWidth()))
			if total > len(data) {
				fmt.Fprintln(a.out, a.theme.Muted.Render(fmt.Sprintf("%d of %d rows", len(data), total)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Number of rows to show [default: preview_rows]")
	return cmd
}

// previewRows reads rows from a local file, or from the backend for the
// active dataset.
func (a *app) previewRows(ctx context.Context, args []string, rows int) ([]string, []dashtypes.Row, int, error) {
	if len(args) == 1 {
		data, err := preview.File(args[0], rows)
		if err != nil {
			return nil, nil, 0, err
		}
		if data.Sheet != "" {
			logger.Debug("Previewing workbook sheet", "sheet", data.Sheet)
		}
		return data.Columns, data.Rows, 0, nil
	}

	info, err := a.workspace.Current()
	if err != nil {
		return nil, nil, 0, err
	}
	table, err := a.client.Preview(ctx, info.DatasetID, rows)
	if err != nil {
		return nil, nil, 0, err
	}
	return table.Columns, table.Rows, table.TotalRows, nil
}

func newColumnsCmd(c *cli) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "columns [file]",
		Short: "Show each column's type and the filter it supports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			columns, data, _, err := a.previewRows(cmd.Context(), args, rows)
			if err != nil {
				return err
			}
			for _, col := range filter.InferColumns(columns, data) {
				fmt.Fprintln(a.out, a.describeColumn(col))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 100, "Rows sampled for inference")
	return cmd
}

func (a *app) describeColumn(col filter.Column) string {
	name := a.theme.Title.Render(col.Name)
	switch col.Kind {
	case dashtypes.ColumnNumeric:
		return fmt.Sprintf("%s  numeric %g..%g  e.g. %s:%g..%g", name, col.Min, col.Max, col.Name, col.Min, col.Max)
	case dashtypes.ColumnDate:
		start, end := col.Start.Format("2006-01-02"), col.End.Format("2006-01-02")
		return fmt.Sprintf("%s  date %s..%s  e.g. %s@%s..%s", name, start, end, col.Name, start, end)
	default:
		cats := col.Categories
		more := ""
		if len(cats) > 5 {
			cats, more = cats[:5], ", …"
		}
		return fmt.Sprintf("%s  categorical %s%s  e.g. %s=%s", name, strings.Join(cats, ", "), more, col.Name, strings.Join(cats[:min(2, len(cats))], ","))
	}
}
