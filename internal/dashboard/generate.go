package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autodash/internal/api"
	"autodash/internal/logger"
	"autodash/internal/render"
	"autodash/internal/sse"
	"autodash/pkg/dashtypes"
)

// Stream event types sent by /api/data/analyze.
const (
	EventProgress      = "progress"
	EventDashboardInfo = "dashboard_info"
	EventKPICard       = "kpi_card"
	EventChart         = "chart"
	EventComplete      = "complete"
	EventError         = "error"
)

type progressPayload struct {
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

type countsPayload struct {
	KPICount       *int   `json:"kpi_count"`
	ChartCount     *int   `json:"chart_count"`
	TotalKPIs      *int   `json:"total_kpis"`
	TotalCharts    *int   `json:"total_charts"`
	Message        string `json:"message"`
	DashboardTitle string `json:"dashboard_title"`
}

func (p countsPayload) kpis() *int {
	if p.TotalKPIs != nil {
		return p.TotalKPIs
	}
	return p.KPICount
}

func (p countsPayload) charts() *int {
	if p.TotalCharts != nil {
		return p.TotalCharts
	}
	return p.ChartCount
}

type chartPayload struct {
	Chart   *dashtypes.ChartSpec `json:"chart"`
	KPICard *dashtypes.ChartSpec `json:"kpi_card"`
}

type errorPayload struct {
	Error   any    `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (p errorPayload) text() string {
	switch v := p.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if s, ok := v["message"].(string); ok && s != "" {
			return s
		}
	}
	if p.Message != "" {
		return p.Message
	}
	if p.Detail != "" {
		return p.Detail
	}
	return "generation failed"
}

// Submit runs one query. With no charts yet it generates the first dashboard,
// otherwise it sends a chat turn. A second Submit while one is in flight
// returns ErrBusy. The whole operation is cancelled through ctx.
func (d *Dashboard) Submit(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	d.mu.Lock()
	if d.loading {
		d.mu.Unlock()
		return ErrBusy
	}
	if d.datasetID == "" {
		d.mu.Unlock()
		return ErrNoDataset
	}
	d.loading = true
	d.phase = PhaseSubmitting
	d.banner = dashtypes.Banner{}
	userMsg := d.appendMessageLocked(dashtypes.ChatMessage{Type: dashtypes.MessageUser, Message: query})
	first := len(d.charts) == 0
	if first {
		d.phase = PhaseFirstChart
		d.progress = ""
		d.expectedKPIs, d.expectedCharts = 0, 0
	} else {
		d.phase = PhaseChatTurn
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.loading = false
		d.mu.Unlock()
	}()

	logger.Debug("Submitting query", "dataset_id", d.DatasetID(), "first_chart", first)

	var err error
	if first {
		err = d.generate(ctx, query)
	} else {
		err = d.chatTurn(ctx, query)
	}
	if err != nil {
		d.fail(err, query, userMsg.ID)
		return err
	}

	d.mu.Lock()
	d.phase = PhaseComplete
	d.mu.Unlock()
	return nil
}

// fail records a failed query. A billing failure rolls back the user message
// and opens the billing state; anything else appends a retryable error message.
func (d *Dashboard) fail(err error, query, userMsgID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phase = PhaseFailed

	var credits *api.InsufficientCreditsError
	if errors.As(err, &credits) {
		d.removeMessageLocked(userMsgID)
		d.billing = dashtypes.BillingState{
			Open:     true,
			Required: credits.Required,
			Balance:  credits.Balance,
			Plan:     credits.Plan,
			Message:  credits.Message,
		}
		logger.Info("Insufficient credits", "required", credits.Required, "balance", credits.Balance, "plan", credits.Plan)
		return
	}

	text := userMessage(err)
	d.appendMessageLocked(dashtypes.ChatMessage{
		Type:          dashtypes.MessageError,
		Message:       text,
		Failed:        true,
		Retryable:     !errors.Is(err, context.Canceled),
		OriginalQuery: query,
	})
	d.banner = dashtypes.Banner{Kind: dashtypes.BannerError, Message: text}
	logger.Warn("Query failed", "error", err)
}

// userMessage turns an error into transcript text.
func userMessage(err error) string {
	var httpErr *api.HTTPError
	var parseErr *sse.ParseError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Message()
	case errors.As(err, &parseErr):
		return "The response stream was malformed. Please try again."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	default:
		return err.Error()
	}
}

func (d *Dashboard) generate(ctx context.Context, query string) error {
	d.mu.Lock()
	req := api.AnalyzeRequest{
		Query:      query,
		DatasetID:  d.datasetID,
		ColorTheme: d.colorTheme,
		Stream:     d.stream,
	}
	d.mu.Unlock()

	resp, err := d.backend.Analyze(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Close()
	}()

	if resp.Stream != nil {
		return d.consume(ctx, resp.Stream)
	}
	if resp.Result == nil {
		return fmt.Errorf("analyze response carried no result")
	}
	return d.applyResult(resp.Result)
}

// consume reads a generation stream to the end. Charts appended before a
// failure stay on the dashboard.
func (d *Dashboard) consume(ctx context.Context, stream *sse.Stream) error {
	appended := 0
	defer func() {
		if appended > 0 {
			d.mu.Lock()
			d.saveToHistoryLocked()
			d.mu.Unlock()
		}
	}()

	completed := false
	for stream.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev := stream.Current()
		switch ev.Type {
		case EventProgress:
			var p progressPayload
			if err := ev.Decode(&p); err != nil {
				return err
			}
			d.mu.Lock()
			d.progress = p.Message
			d.mu.Unlock()
			if d.hooks.OnProgress != nil {
				d.hooks.OnProgress(p.Message)
			}

		case EventDashboardInfo:
			var p countsPayload
			if err := ev.Decode(&p); err != nil {
				return err
			}
			d.mu.Lock()
			d.setCountsLocked(p.kpis(), p.charts())
			if p.DashboardTitle != "" {
				d.title = p.DashboardTitle
			}
			d.mu.Unlock()

		case EventKPICard, EventChart:
			chart, err := decodeChart(ev)
			if err != nil {
				return err
			}
			if ev.Type == EventKPICard && chart.ChartType == "" {
				chart.ChartType = dashtypes.ChartTypeKPICard
			}
			if added, ok := d.appendChart(chart); ok {
				appended++
				if d.hooks.OnChart != nil {
					d.hooks.OnChart(added)
				}
			}

		case EventComplete:
			var p countsPayload
			if err := ev.Decode(&p); err != nil {
				return err
			}
			d.finish(p.kpis(), p.charts(), p.Message, p.DashboardTitle)
			completed = true

		case EventError:
			var p errorPayload
			if err := ev.Decode(&p); err != nil {
				return err
			}
			stream.Fail(fmt.Errorf("%w: %s", sse.ErrStreamError, p.text()))

		default:
			logger.Debug("Ignoring unknown stream event", "type", ev.Type)
		}
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if !completed {
		d.finish(nil, nil, "", "")
	}
	return nil
}

func decodeChart(ev sse.Event) (dashtypes.ChartSpec, error) {
	var p chartPayload
	if err := ev.Decode(&p); err != nil {
		return dashtypes.ChartSpec{}, err
	}
	switch {
	case p.Chart != nil:
		return *p.Chart, nil
	case p.KPICard != nil:
		return *p.KPICard, nil
	}
	// Some backends put the chart fields on the event itself.
	var inline dashtypes.ChartSpec
	if err := ev.Decode(&inline); err != nil {
		return dashtypes.ChartSpec{}, err
	}
	return inline, nil
}

func (d *Dashboard) applyResult(res *api.AnalyzeResult) error {
	var added []dashtypes.ChartSpec
	for _, kpi := range res.KPICards {
		if kpi.ChartType == "" {
			kpi.ChartType = dashtypes.ChartTypeKPICard
		}
		if c, ok := d.appendChart(kpi); ok {
			added = append(added, c)
		}
	}
	for _, chart := range res.Charts {
		if c, ok := d.appendChart(chart); ok {
			added = append(added, c)
		}
	}

	d.finish(res.TotalKPIs, res.TotalCharts, res.Message, res.DashboardTitle)

	if len(added) > 0 {
		d.mu.Lock()
		d.saveToHistoryLocked()
		d.mu.Unlock()
	}
	if d.hooks.OnChart != nil {
		for _, c := range added {
			d.hooks.OnChart(c)
		}
	}
	return nil
}

// appendChart adds a chart unless its figure is blank. Charts carrying an
// execution error are kept so the renderer can attempt a fix.
func (d *Dashboard) appendChart(chart dashtypes.ChartSpec) (dashtypes.ChartSpec, bool) {
	if chart.ExecutionError == "" && render.IsBlankFigure(chart.Figure) {
		logger.Debug("Skipping blank chart", "title", chart.Title, "chart_type", chart.ChartType)
		return dashtypes.ChartSpec{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if chart.ID == "" {
		chart.ID = d.ids.ID()
	}
	chart.ChartIndex = len(d.charts)
	chart.FixAttempted = false
	d.charts = append(d.charts, chart)
	return chart, true
}

// finish finalises expected counts and posts the summary message. Nil counts
// fall back to what actually arrived.
func (d *Dashboard) finish(kpis, charts *int, message, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if kpis == nil || charts == nil {
		var k, c int
		for i := range d.charts {
			if d.charts[i].IsKPI() {
				k++
			} else {
				c++
			}
		}
		if kpis == nil {
			kpis = &k
		}
		if charts == nil {
			charts = &c
		}
	}
	d.setCountsLocked(kpis, charts)
	if title != "" {
		d.title = title
	}
	d.progress = ""

	if message == "" {
		message = summary(d.expectedKPIs, d.expectedCharts)
	}
	d.appendMessageLocked(dashtypes.ChatMessage{Type: dashtypes.MessageAssistant, Message: message})
}

func (d *Dashboard) setCountsLocked(kpis, charts *int) {
	if kpis != nil {
		d.expectedKPIs = *kpis
	}
	if charts != nil {
		d.expectedCharts = *charts
	}
}

func summary(kpis, charts int) string {
	return fmt.Sprintf("Created %s and %s.", plural(charts, "chart"), plural(kpis, "KPI card"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (d *Dashboard) chatTurn(ctx context.Context, query string) error {
	d.mu.Lock()
	titles := make([]string, 0, len(d.charts))
	for i := range d.charts {
		titles = append(titles, d.charts[i].DisplayTitle())
	}
	req := api.ChatRequest{Message: query, DatasetID: d.datasetID, ChartTitle: titles}
	d.mu.Unlock()

	resp, err := d.backend.Chat(ctx, req)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.appendReplyLocked(resp)
	d.mu.Unlock()
	return nil
}

// appendReplyLocked records an assistant reply, resolving its matched chart to
// a stable ID while the index is still current.
func (d *Dashboard) appendReplyLocked(resp *api.ChatResponse) dashtypes.ChatMessage {
	msg := dashtypes.ChatMessage{
		Type:           dashtypes.MessageAssistant,
		Message:        resp.Response,
		CodeType:       resp.CodeType,
		ExecutableCode: resp.ExecutableCode,
	}
	if resp.MatchedChart != nil {
		matched := *resp.MatchedChart
		if matched.ChartIndex >= 0 && matched.ChartIndex < len(d.charts) {
			matched.ChartID = d.charts[matched.ChartIndex].ID
			if matched.Title == "" {
				matched.Title = d.charts[matched.ChartIndex].DisplayTitle()
			}
		}
		msg.MatchedChart = &matched
	}
	return d.appendMessageLocked(msg)
}
