package dashboard

import (
	"context"
	"fmt"
	"strings"

	"autodash/internal/api"
	"autodash/internal/history"
	"autodash/internal/logger"
	"autodash/pkg/dashtypes"
)

// ExecResult is the outcome of executing a message's code.
type ExecResult struct {
	Message *dashtypes.ChatMessage // Reply appended to the transcript, if any
	Chart   *dashtypes.ChartSpec   // Chart created or replaced, if any
	Diff    string                 // Code diff when an edit replaced chart code
}

// Retry resends the original query of a failed, retryable message. The failed
// message is left untouched and the reply is appended as a new message.
func (d *Dashboard) Retry(ctx context.Context, messageID string) (dashtypes.ChatMessage, error) {
	d.mu.Lock()
	if d.loading {
		d.mu.Unlock()
		return dashtypes.ChatMessage{}, ErrBusy
	}
	var original *dashtypes.ChatMessage
	for i := range d.messages {
		if d.messages[i].ID == messageID {
			original = &d.messages[i]
			break
		}
	}
	if original == nil || !original.Failed || !original.Retryable || original.OriginalQuery == "" {
		d.mu.Unlock()
		return dashtypes.ChatMessage{}, ErrNotRetryable
	}
	query := original.OriginalQuery
	req := api.RetryRequest{OriginalQuery: query, DatasetID: d.datasetID}
	d.loading = true
	d.phase = PhaseSubmitting
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.loading = false
		d.mu.Unlock()
	}()

	resp, err := d.backend.Retry(ctx, req)
	if err != nil {
		d.fail(err, query, "")
		return dashtypes.ChatMessage{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.phase = PhaseComplete
	d.banner = dashtypes.Banner{}
	return d.appendReplyLocked(resp), nil
}

// ExecuteMessageCode runs the code attached to an assistant message. Analysis
// output is appended as a reply, a plotly edit replaces the matched chart, and
// add_chart appends a new chart.
func (d *Dashboard) ExecuteMessageCode(ctx context.Context, messageID string) (*ExecResult, error) {
	msg, ok := d.Message(messageID)
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	if !msg.HasCode() {
		return nil, ErrNoCode
	}

	switch msg.CodeType {
	case dashtypes.CodeAnalysis:
		return d.runAnalysis(ctx, msg)
	case dashtypes.CodePlotlyEdit:
		return d.runEdit(ctx, msg)
	default:
		chart, err := d.addChart(ctx, api.AddChartRequest{Code: msg.ExecutableCode})
		if err != nil {
			return nil, err
		}
		return &ExecResult{Chart: &chart}, nil
	}
}

func (d *Dashboard) runAnalysis(ctx context.Context, msg dashtypes.ChatMessage) (*ExecResult, error) {
	resp, err := d.backend.ExecuteCode(ctx, api.ExecuteCodeRequest{
		Code:      msg.ExecutableCode,
		DatasetID: d.DatasetID(),
		CodeType:  dashtypes.CodeAnalysis,
	})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !resp.Success {
		reply := d.appendMessageLocked(dashtypes.ChatMessage{
			Type:    dashtypes.MessageError,
			Message: "Analysis failed: " + execError(resp),
			Failed:  true,
		})
		return &ExecResult{Message: &reply}, fmt.Errorf("analysis failed: %s", execError(resp))
	}
	output := strings.TrimSpace(resp.Output)
	if output == "" {
		output = "Analysis completed with no output."
	}
	reply := d.appendMessageLocked(dashtypes.ChatMessage{Type: dashtypes.MessageAssistant, Message: output})
	return &ExecResult{Message: &reply}, nil
}

func (d *Dashboard) runEdit(ctx context.Context, msg dashtypes.ChatMessage) (*ExecResult, error) {
	if msg.MatchedChart == nil || msg.MatchedChart.ChartID == "" {
		return nil, ErrNoMatchedChart
	}
	chartID := msg.MatchedChart.ChartID

	idx, ok := d.IndexOf(chartID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	resp, err := d.backend.ExecuteCode(ctx, api.ExecuteCodeRequest{
		Code:       msg.ExecutableCode,
		DatasetID:  d.DatasetID(),
		CodeType:   dashtypes.CodePlotlyEdit,
		ChartIndex: &idx,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Figure == nil {
		return nil, fmt.Errorf("edit failed: %s", execError(resp))
	}

	code := resp.ChartSpec
	if code == "" {
		code = msg.ExecutableCode
	}

	d.mu.Lock()
	i := d.indexLocked(chartID)
	if i < 0 {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	before := d.charts[i].ChartSpec
	d.charts[i].ChartSpec = code
	d.charts[i].Figure = resp.Figure
	d.charts[i].ExecutionError = ""
	d.charts[i].FixAttempted = false
	d.saveToHistoryLocked()
	updated := d.charts[i]
	reply := d.appendMessageLocked(dashtypes.ChatMessage{
		Type:    dashtypes.MessageAssistant,
		Message: fmt.Sprintf("Updated %q.", updated.DisplayTitle()),
	})
	d.mu.Unlock()

	d.notifyReset(chartID)

	result := &ExecResult{Message: &reply, Chart: &updated}
	if d.differ != nil {
		result.Diff = d.differ.Diff(before, code)
	}
	return result, nil
}

func execError(resp *api.ExecuteCodeResponse) string {
	if resp.Error != "" {
		return resp.Error
	}
	return "no result returned"
}

// AddChart asks the backend for a new chart answering query.
func (d *Dashboard) AddChart(ctx context.Context, query string) (dashtypes.ChartSpec, error) {
	return d.addChart(ctx, api.AddChartRequest{Query: query})
}

func (d *Dashboard) addChart(ctx context.Context, req api.AddChartRequest) (dashtypes.ChartSpec, error) {
	d.mu.Lock()
	req.DatasetID = d.datasetID
	req.ColorTheme = d.colorTheme
	d.mu.Unlock()

	spec, err := d.backend.AddChart(ctx, req)
	if err != nil {
		return dashtypes.ChartSpec{}, err
	}
	return d.addReturned(*spec)
}

// AddKPI asks the backend for a new KPI card answering query.
func (d *Dashboard) AddKPI(ctx context.Context, query string) (dashtypes.ChartSpec, error) {
	spec, err := d.backend.AddKPI(ctx, api.KPIRequest{DatasetID: d.DatasetID(), Query: query})
	if err != nil {
		return dashtypes.ChartSpec{}, err
	}
	if spec.ChartType == "" {
		spec.ChartType = dashtypes.ChartTypeKPICard
	}
	return d.addReturned(*spec)
}

// addReturned appends a chart created by an explicit user action. Unlike
// streamed generation, such charts are kept even when their figure is blank
// so the user sees what the backend produced.
func (d *Dashboard) addReturned(spec dashtypes.ChartSpec) (dashtypes.ChartSpec, error) {
	d.mu.Lock()
	spec.ID = d.ids.ID()
	spec.ChartIndex = len(d.charts)
	spec.FixAttempted = false
	d.charts = append(d.charts, spec)
	d.saveToHistoryLocked()
	d.mu.Unlock()

	if d.hooks.OnChart != nil {
		d.hooks.OnChart(spec)
	}
	return spec, nil
}

// EditKPI regenerates a KPI card in place; it keeps its ID.
func (d *Dashboard) EditKPI(ctx context.Context, chartID, query string) (dashtypes.ChartSpec, error) {
	idx, ok := d.IndexOf(chartID)
	if !ok {
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	spec, err := d.backend.EditKPI(ctx, d.DatasetID(), idx, query)
	if err != nil {
		return dashtypes.ChartSpec{}, err
	}

	d.mu.Lock()
	i := d.indexLocked(chartID)
	if i < 0 {
		d.mu.Unlock()
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	updated := *spec
	updated.ID = chartID
	updated.ChartIndex = i
	updated.FixAttempted = false
	if updated.ChartType == "" {
		updated.ChartType = dashtypes.ChartTypeKPICard
	}
	d.charts[i] = updated
	d.saveToHistoryLocked()
	d.mu.Unlock()

	d.notifyReset(chartID)
	return updated, nil
}

// DeleteChart removes a chart on the backend, then locally, and re-indexes the
// remaining charts. Side state keyed by chart ID stays valid.
func (d *Dashboard) DeleteChart(ctx context.Context, chartID string) error {
	idx, ok := d.IndexOf(chartID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	if err := d.backend.DeleteChart(ctx, d.DatasetID(), idx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(chartID)
	if i < 0 {
		return nil
	}
	d.charts = append(d.charts[:i], d.charts[i+1:]...)
	d.reindexLocked()
	// Filters of a deleted chart stay stored so Undo brings them back.
	d.saveToHistoryLocked()
	logger.Debug("Chart deleted", "chart_id", chartID, "remaining", len(d.charts))
	return nil
}

func (d *Dashboard) reindexLocked() {
	for i := range d.charts {
		d.charts[i].ChartIndex = i
	}
}

// ReplaceChart installs a repaired chart reported by the self-healing renderer.
// The fix guard stays spent.
func (d *Dashboard) ReplaceChart(chartID, code string, fig *dashtypes.Figure) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(chartID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	if code != "" {
		d.charts[i].ChartSpec = code
	}
	d.charts[i].Figure = fig
	d.charts[i].ExecutionError = ""
	d.charts[i].FixAttempted = true
	d.saveToHistoryLocked()
	return nil
}

// MarkFixAttempted records that a chart's one-shot fix was spent without success.
func (d *Dashboard) MarkFixAttempted(chartID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexLocked(chartID); i >= 0 {
		d.charts[i].FixAttempted = true
	}
}

// ApplyFilter recomputes a chart under filters. An empty map clears them.
func (d *Dashboard) ApplyFilter(ctx context.Context, chartID string, filters dashtypes.FilterMap) (dashtypes.ChartSpec, error) {
	idx, ok := d.IndexOf(chartID)
	if !ok {
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	if filters == nil {
		filters = dashtypes.FilterMap{}
	}
	resp, err := d.backend.ApplyFilter(ctx, api.FilterRequest{DatasetID: d.DatasetID(), ChartIndex: idx, Filters: filters})
	if err != nil {
		return dashtypes.ChartSpec{}, err
	}

	d.mu.Lock()
	i := d.indexLocked(chartID)
	if i < 0 {
		d.mu.Unlock()
		return dashtypes.ChartSpec{}, fmt.Errorf("%w: %s", ErrChartNotFound, chartID)
	}
	d.charts[i].Figure = resp.Figure
	if resp.ChartSpec != "" {
		d.charts[i].ChartSpec = resp.ChartSpec
	}
	d.charts[i].ExecutionError = ""
	d.charts[i].FixAttempted = false
	if len(filters) == 0 {
		delete(d.filters, chartID)
	} else {
		stored := make(dashtypes.FilterMap, len(filters))
		for k, v := range filters {
			stored[k] = v
		}
		d.filters[chartID] = stored
	}
	d.saveToHistoryLocked()
	updated := d.charts[i]
	d.mu.Unlock()

	d.notifyReset(chartID)
	return updated, nil
}

// ClearFilter resubmits an empty filter map for a chart.
func (d *Dashboard) ClearFilter(ctx context.Context, chartID string) (dashtypes.ChartSpec, error) {
	return d.ApplyFilter(ctx, chartID, dashtypes.FilterMap{})
}

// SetColorTheme stores the palette on the backend and uses it for new charts.
func (d *Dashboard) SetColorTheme(ctx context.Context, theme string, colors []string) error {
	if err := d.backend.SetDashboardColors(ctx, d.DatasetID(), api.ColorsRequest{ColorTheme: theme, Colors: colors}); err != nil {
		return err
	}
	d.mu.Lock()
	d.colorTheme = theme
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) notifyReset(chartID string) {
	if d.hooks.OnChartReset != nil {
		d.hooks.OnChartReset(chartID)
	}
}

// saveToHistoryLocked snapshots the chart array after a successful mutation.
func (d *Dashboard) saveToHistoryLocked() {
	if err := d.history.Save(d.charts); err != nil {
		logger.Warn("Failed to save history snapshot", "error", err)
	}
}

// Undo restores the previous chart array. It changes client display only;
// the backend is not told to roll back.
func (d *Dashboard) Undo() error {
	snap, err := d.history.Undo()
	if err != nil {
		return err
	}
	d.restoreCharts(snap)
	return nil
}

// Redo restores the next chart array. Like Undo it never calls the backend.
func (d *Dashboard) Redo() error {
	snap, err := d.history.Redo()
	if err != nil {
		return err
	}
	d.restoreCharts(snap)
	return nil
}

func (d *Dashboard) restoreCharts(snap []dashtypes.ChartSpec) {
	if snap == nil {
		snap = []dashtypes.ChartSpec{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.charts = snap
	d.reindexLocked()
}

// State is a serialisable dashboard.
type State struct {
	DatasetID      string                               `json:"dataset_id" yaml:"dataset_id"`
	Title          string                               `json:"title,omitempty" yaml:"title,omitempty"`
	ColorTheme     string                               `json:"color_theme,omitempty" yaml:"color_theme,omitempty"`
	Charts         []dashtypes.ChartSpec                `json:"charts" yaml:"charts"`
	Messages       []dashtypes.ChatMessage              `json:"messages" yaml:"messages"`
	Filters        map[string]dashtypes.FilterMap       `json:"filters,omitempty" yaml:"filters,omitempty"`
	ExpectedKPIs   int                                  `json:"expected_kpis" yaml:"expected_kpis"`
	ExpectedCharts int                                  `json:"expected_charts" yaml:"expected_charts"`
	History        history.State[[]dashtypes.ChartSpec] `json:"history" yaml:"-"`
}

// Snapshot captures the whole dashboard.
func (d *Dashboard) Snapshot() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	charts, err := history.Clone(d.charts)
	if err != nil {
		return State{}, err
	}
	filters, err := history.Clone(d.filters)
	if err != nil {
		return State{}, err
	}
	hist, err := d.history.Export()
	if err != nil {
		return State{}, err
	}
	return State{
		DatasetID:      d.datasetID,
		Title:          d.title,
		ColorTheme:     d.colorTheme,
		Charts:         charts,
		Messages:       append([]dashtypes.ChatMessage(nil), d.messages...),
		Filters:        filters,
		ExpectedKPIs:   d.expectedKPIs,
		ExpectedCharts: d.expectedCharts,
		History:        hist,
	}, nil
}

// Restore replaces the dashboard with st. An empty history is re-seeded with
// the restored charts.
func (d *Dashboard) Restore(st State) error {
	charts, err := history.Clone(st.Charts)
	if err != nil {
		return err
	}
	if charts == nil {
		charts = []dashtypes.ChartSpec{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loading {
		return ErrBusy
	}

	if len(st.History.Entries) > 0 {
		if err := d.history.Import(st.History); err != nil {
			return err
		}
	} else if err := d.history.Reset(charts); err != nil {
		return err
	}

	d.datasetID = st.DatasetID
	d.title = st.Title
	if st.ColorTheme != "" {
		d.colorTheme = st.ColorTheme
	}
	d.charts = charts
	d.reindexLocked()
	d.messages = append([]dashtypes.ChatMessage(nil), st.Messages...)
	d.filters = map[string]dashtypes.FilterMap{}
	for id, f := range st.Filters {
		d.filters[id] = f
	}
	d.expectedKPIs = st.ExpectedKPIs
	d.expectedCharts = st.ExpectedCharts
	d.phase = PhaseIdle
	return nil
}

// Reset empties the dashboard for a new dataset. The transcript is cleared too.
func (d *Dashboard) Reset(datasetID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loading {
		return ErrBusy
	}
	d.datasetID = datasetID
	d.title = ""
	d.charts = []dashtypes.ChartSpec{}
	d.messages = nil
	d.filters = map[string]dashtypes.FilterMap{}
	d.expectedKPIs, d.expectedCharts = 0, 0
	d.progress = ""
	d.banner = dashtypes.Banner{}
	d.billing = dashtypes.BillingState{}
	d.phase = PhaseIdle
	return d.history.Reset(d.charts)
}
