package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"autodash/internal/api"
	"autodash/internal/config"
	"autodash/internal/dashboard"
	"autodash/internal/logger"
	"autodash/internal/render"
	"autodash/internal/services"
	"autodash/internal/version"
	"autodash/pkg/dashtypes"
)

// app is the bootstrapped client: configuration, backend client and services.
type app struct {
	cfg       *config.Config
	out       io.Writer
	client    *api.Client
	workspace *services.WorkspaceService
	prefs     *services.PreferencesService
	theme     *services.Theme
	markdown  *services.MarkdownService
	palettes  *services.PaletteService
	differ    *services.DiffService
	clipboard *services.ClipboardService
	completer *services.AutoCompleteService
	prompt    *services.PromptColorService
	editor    *services.EditorService
	trace     *services.DebugTransportService

	// healer is created per dashboard so fix guards follow the dataset.
	healer *render.SelfHealer
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	registry := services.GetGlobalRegistry()
	registry.ReplaceService(services.NewPreferencesService(
		services.NewMemoryStore(),
		services.NewFileStore(filepath.Join(cfg.StateDir, "preferences.json")),
	))
	registry.ReplaceService(services.NewWorkspaceService(filepath.Join(cfg.StateDir, "workspace")))

	if err := registry.InitializeAll(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a := &app{cfg: cfg, out: out}

	var err error
	if a.trace, err = services.GetGlobalDebugTransportService(); err != nil {
		return nil, err
	}
	opts := []api.Option{
		api.WithTimeout(cfg.Timeout),
		api.WithUserAgent("autodash-cli/" + version.Version),
	}
	if cfg.TraceHTTP {
		opts = append(opts, api.WithHTTPClient(&http.Client{Transport: a.trace.CreateTransport(nil)}))
	}
	a.client = api.NewClient(cfg.APIURL, cfg.SessionToken, opts...)

	if a.workspace, err = services.GetGlobalWorkspaceService(); err != nil {
		return nil, err
	}
	if a.prefs, err = services.GetGlobalPreferencesService(); err != nil {
		return nil, err
	}
	if a.markdown, err = services.GetGlobalMarkdownService(); err != nil {
		return nil, err
	}
	if a.palettes, err = services.GetGlobalPaletteService(); err != nil {
		return nil, err
	}
	if a.differ, err = services.GetGlobalDiffService(); err != nil {
		return nil, err
	}
	if a.clipboard, err = services.GetGlobalClipboardService(); err != nil {
		return nil, err
	}
	if a.completer, err = services.GetGlobalAutoCompleteService(); err != nil {
		return nil, err
	}
	if a.prompt, err = services.GetGlobalPromptColorService(); err != nil {
		return nil, err
	}
	if a.editor, err = services.GetGlobalEditorService(); err != nil {
		return nil, err
	}
	a.editor.SetCommand(cfg.Editor)
	themes, err := services.GetGlobalThemeService()
	if err != nil {
		return nil, err
	}
	a.theme = themes.GetThemeByName(cfg.DisplayTheme)
	a.differ.SetTheme(a.theme)
	a.prompt.SetTheme(a.theme)

	logger.ServiceOperation("cli", "bootstrap", "api_url", cfg.APIURL, "state_dir", cfg.StateDir, "theme", a.theme.Name)
	return a, nil
}

// openDashboard restores the active dataset's dashboard from the workspace.
func (a *app) openDashboard() (*dashboard.Dashboard, error) {
	info, err := a.workspace.Current()
	if err != nil {
		return nil, err
	}
	st, err := a.workspace.Load(info.DatasetID)
	if err != nil {
		return nil, err
	}

	d := dashboard.New(a.client, info.DatasetID,
		dashboard.WithStreaming(a.cfg.Stream),
		dashboard.WithColorTheme(a.cfg.ColorTheme),
		dashboard.WithDiffer(a.differ),
		dashboard.WithHooks(dashboard.Hooks{
			OnProgress: func(message string) {
				fmt.Fprintln(a.out, a.theme.Muted.Render("… "+message))
			},
			OnChart: func(chart dashtypes.ChartSpec) {
				fmt.Fprintln(a.out, a.theme.Success.Render("✓ "+chart.DisplayTitle()))
			},
			OnChartReset: func(chartID string) {
				if a.healer != nil {
					a.healer.Reset(chartID)
				}
			},
		}),
	)
	if err := d.Restore(st); err != nil {
		return nil, fmt.Errorf("failed to restore dashboard: %w", err)
	}

	a.healer = render.NewSelfHealer(render.NewPNGRenderer(), a.client, info.DatasetID)
	a.healer.Options = render.Options{Palette: a.paletteColors(d.ColorTheme())}
	a.healer.OnFixed = func(chartID, fixedCode string, fig *dashtypes.Figure) {
		before, _ := d.Chart(chartID)
		if err := d.ReplaceChart(chartID, fixedCode, fig); err != nil {
			logger.Warn("Failed to apply chart fix", "chart_id", chartID, "error", err)
			return
		}
		fmt.Fprintln(a.out, a.theme.Info.Render("Fixed "+before.DisplayTitle()))
		if diff := a.differ.Diff(before.ChartSpec, fixedCode); diff != "" {
			fmt.Fprint(a.out, diff)
		}
	}
	return d, nil
}

// saveDashboard persists the dashboard to the workspace.
func (a *app) saveDashboard(d *dashboard.Dashboard) error {
	st, err := d.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot dashboard: %w", err)
	}
	return a.workspace.Save(st)
}

// startDataset makes info the active dataset with an empty dashboard.
func (a *app) startDataset(info *dashtypes.DatasetInfo) error {
	if err := a.workspace.SetCurrent(*info); err != nil {
		return err
	}
	return a.workspace.Save(dashboard.State{DatasetID: info.DatasetID, ColorTheme: a.cfg.ColorTheme})
}

// paletteColors returns the colours of a named palette, or nil when unknown.
func (a *app) paletteColors(name string) []string {
	pal, err := a.palettes.Get(name)
	if err != nil {
		logger.Debug("Unknown palette, using renderer defaults", "palette", name)
		return nil
	}
	return pal.Colors
}

var errAmbiguousChart = errors.New("chart reference is ambiguous")

// resolveChart accepts a chart ID, a 1-based position or an unambiguous
// case-insensitive title prefix.
func resolveChart(d *dashboard.Dashboard, ref string) (dashtypes.ChartSpec, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "#"))
	if chart, ok := d.Chart(ref); ok {
		return chart, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if id, ok := d.ChartIDAt(n - 1); ok {
			chart, _ := d.Chart(id)
			return chart, nil
		}
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: no chart at position %d", dashboard.ErrChartNotFound, n)
	}

	var matches []dashtypes.ChartSpec
	lower := strings.ToLower(ref)
	for _, chart := range d.Charts() {
		if strings.HasPrefix(strings.ToLower(chart.DisplayTitle()), lower) {
			matches = append(matches, chart)
		}
	}
	switch len(matches) {
	case 0:
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %q", dashboard.ErrChartNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %q matches %d charts", errAmbiguousChart, ref, len(matches))
	}
}

// chartRefs lists the references the shell offers for completion.
func (a *app) chartRefs() []string {
	info, err := a.workspace.Current()
	if err != nil {
		return nil
	}
	st, err := a.workspace.Load(info.DatasetID)
	if err != nil {
		return nil
	}
	refs := make([]string, 0, len(st.Charts))
	for _, chart := range st.Charts {
		refs = append(refs, chart.ID)
	}
	return refs
}
