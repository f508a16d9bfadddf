package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"autodash/internal/api"
	"autodash/internal/dashboard"
	"autodash/internal/export"
	"autodash/internal/logger"
	"autodash/internal/render"
	"autodash/pkg/dashtypes"
)

func newShareCmd(c *cli) *cobra.Command {
	var copyLink bool
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Create a share link for the active dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			info, err := a.workspace.Current()
			if err != nil {
				return err
			}
			link, err := a.client.Share(cmd.Context(), info.DatasetID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link.ShareURL)
			if link.ExpiresAt != nil {
				fmt.Fprintln(a.out, a.theme.Muted.Render("expires "+link.ExpiresAt.Local().Format(time.RFC1123)))
			}
			if !copyLink {
				return nil
			}
			if err := a.clipboard.Copy(link.ShareURL); err != nil {
				logger.Debug("Clipboard copy failed", "error", err)
				fmt.Fprintln(a.out, a.theme.Muted.Render("Clipboard unavailable, copy the link above"))
				return nil
			}
			fmt.Fprintln(a.out, a.theme.Success.Render("Copied to clipboard"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "Copy the link to the clipboard")
	return cmd
}

func newColorsCmd(c *cli) *cobra.Command {
	var list bool
	var custom []string
	cmd := &cobra.Command{
		Use:   "colors [palette]",
		Short: "Set the dashboard color theme",
		Long: `Set the chart colour palette of the active dashboard. Every chart is
regenerated with the new colours. Use --list to see the built-in palettes, or
--custom to supply hex colours.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if list || (len(args) == 0 && len(custom) == 0) {
				return a.printPalettes()
			}

			var pal dashtypes.Palette
			var err error
			if len(custom) > 0 {
				name := "custom"
				if len(args) == 1 {
					name = args[0]
				}
				pal, err = a.palettes.Custom(name, custom)
			} else {
				pal, err = a.palettes.Get(args[0])
			}
			if err != nil {
				return err
			}

			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				if err := d.SetColorTheme(cmd.Context(), pal.Name, pal.Colors); err != nil {
					return err
				}
				a.healer.Options.Palette = pal.Colors
				fmt.Fprintln(a.out, a.theme.Success.Render("Color theme set to "+pal.Name))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List the built-in palettes")
	cmd.Flags().StringSliceVar(&custom, "custom", nil, "Comma-separated hex colours for a custom palette")
	return cmd
}

func (a *app) printPalettes() error {
	current := a.cfg.ColorTheme
	if d, err := a.openDashboard(); err == nil && d.ColorTheme() != "" {
		current = d.ColorTheme()
	}
	for _, name := range a.palettes.Names() {
		pal, err := a.palettes.Get(name)
		if err != nil {
			return err
		}
		marker := "  "
		if name == current {
			marker = "* "
		}
		fmt.Fprintf(a.out, "%s%s %s\n", marker, a.theme.Title.Render(name), a.swatch(pal.Colors))
	}
	return nil
}

func (a *app) swatch(colors []string) string {
	var b strings.Builder
	for _, c := range colors {
		b.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(c)).Render("  "))
	}
	return b.String()
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func defaultExportName(d *dashboard.Dashboard, ext string) string {
	base := d.Title()
	if base == "" {
		base = d.DatasetID()
	}
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "-"), "-")
	if base == "" {
		base = "dashboard"
	}
	if ext == "" {
		return base + "-charts"
	}
	return base + "." + ext
}

func newExportCmd(c *cli) *cobra.Command {
	var output string
	var static, figures, transcript bool
	cmd := &cobra.Command{
		Use:       "export <zip|pdf|html|yaml|png>",
		Short:     "Export the active dashboard",
		ValidArgs: []string{"zip", "pdf", "html", "yaml", "png"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Long: `Export the active dashboard.

  zip    chart images packaged by the backend
  pdf    dashboard PDF built by the backend
  html   offline page with interactive charts
  yaml   readable dump of charts, filters and transcript
  png    one image per chart written to a directory

Charts that fail to render are sent for a one-time fix unless --static is set and
are skipped when they still fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDashboard(func(a *app, d *dashboard.Dashboard) error {
				var renderer export.ChartRenderer = a.healer
				if static {
					renderer = export.Static(render.NewPNGRenderer(), a.healer.Options)
				}
				format := args[0]
				path := output

				switch format {
				case "html":
					if path == "" {
						path = defaultExportName(d, "html")
					}
					var buf bytes.Buffer
					if err := export.HTML(&buf, d.Title(), d.Charts(), a.healer.Options.Palette); err != nil {
						return err
					}
					return a.writeExport(path, buf.Bytes())

				case "yaml":
					if path == "" {
						path = defaultExportName(d, "yaml")
					}
					st, err := d.Snapshot()
					if err != nil {
						return err
					}
					var buf bytes.Buffer
					if err := export.YAML(&buf, st, export.YAMLOptions{Figures: figures, Transcript: transcript}); err != nil {
						return err
					}
					return a.writeExport(path, buf.Bytes())

				case "png":
					if path == "" {
						path = defaultExportName(d, "")
					}
					images := a.capture(cmd, d, renderer)
					if len(images) == 0 {
						return export.ErrNothingCaptured
					}
					if err := os.MkdirAll(path, 0o755); err != nil {
						return err
					}
					for _, img := range images {
						data, err := export.DecodeImage(img)
						if err != nil {
							return err
						}
						name := fmt.Sprintf("%02d-%s.png", img.ChartIndex+1, strings.Trim(unsafeFileChars.ReplaceAllString(img.Title, "-"), "-"))
						if err := os.WriteFile(filepath.Join(path, name), data, 0o644); err != nil {
							return err
						}
					}
					fmt.Fprintln(a.out, a.theme.Success.Render(fmt.Sprintf("Wrote %d images to %s", len(images), path)))
					return nil

				default:
					if path == "" {
						path = defaultExportName(d, format)
					}
					images := a.capture(cmd, d, renderer)
					data, err := export.Package(cmd.Context(), a.client, export.Format(format), d.DatasetID(), d.Title(), images)
					if err != nil {
						return err
					}
					return a.writeExport(path, data)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, or directory for png")
	cmd.Flags().BoolVar(&static, "static", false, "Render charts as they are without asking for fixes")
	cmd.Flags().BoolVar(&figures, "figures", false, "Include full figures in the yaml export")
	cmd.Flags().BoolVar(&transcript, "transcript", true, "Include the chat transcript in the yaml export")
	return cmd
}

// capture renders every chart, warning about the ones skipped. Repaired
// charts are recorded on d by the healer's fix hook.
func (a *app) capture(cmd *cobra.Command, d *dashboard.Dashboard, r export.ChartRenderer) []api.ExportImage {
	images, failures := export.Capture(cmd.Context(), d.Charts(), r)
	for _, f := range failures {
		if a.healer.Attempted(f.ChartID) {
			d.MarkFixAttempted(f.ChartID)
		}
		fmt.Fprintln(a.out, a.theme.Muted.Render(fmt.Sprintf("Skipped %s: %v", f.Title, f.Err)))
	}
	return images
}

func (a *app) writeExport(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(a.out, a.theme.Success.Render(fmt.Sprintf("Wrote %s (%d bytes)", path, len(data))))
	return nil
}

func newDashboardsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboards",
		Short: "List recent dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			list, err := a.client.RecentDashboards(cmd.Context())
			if err != nil {
				logger.Warn("Failed to fetch recent dashboards, showing local copies", "error", err)
				if list, err = a.workspace.Recent(); err != nil {
					return err
				}
			} else if err := a.workspace.CacheRecent(list); err != nil {
				logger.Warn("Failed to cache recent dashboards", "error", err)
			}

			if len(list) == 0 {
				fmt.Fprintln(a.out, a.theme.Muted.Render("No dashboards yet"))
				return nil
			}
			current := ""
			if info, err := a.workspace.Current(); err == nil {
				current = info.DatasetID
			}
			for _, m := range list {
				marker := "  "
				if m.DatasetID == current {
					marker = "* "
				}
				title := m.Title
				if title == "" {
					title = m.DatasetID
				}
				fmt.Fprintf(a.out, "%s%s %s\n", marker, a.theme.Title.Render(title),
					a.theme.Muted.Render(fmt.Sprintf("%d charts, %s", m.ChartCount, m.Timestamp.Local().Format("2006-01-02 15:04"))))
			}
			return nil
		},
	}
}
