// Package dashboard orchestrates chart generation for one dataset: it drives
// the query state machine, keeps the chat transcript and the chart array, and
// records undo/redo snapshots of the array after every successful change.
//
// Charts carry a stable client-side ID. Every method that targets a chart takes
// that ID and resolves the current array index at call time, so deletions that
// re-index the array never misdirect a later fix, filter or notes call.
package dashboard

import (
	"context"
	"errors"
	"sync"

	"autodash/internal/api"
	"autodash/internal/history"
	"autodash/internal/ids"
	"autodash/pkg/dashtypes"
)

// Sentinel errors.
var (
	ErrBusy           = errors.New("a query is already in progress")
	ErrNoDataset      = errors.New("no dataset loaded")
	ErrChartNotFound  = errors.New("chart not found")
	ErrEmptyQuery     = errors.New("query is empty")
	ErrNotRetryable   = errors.New("message cannot be retried")
	ErrNoCode         = errors.New("message has no executable code")
	ErrNoMatchedChart = errors.New("message does not target a chart")
)

// Phase is the state of the current or last query.
type Phase string

// Query phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseFirstChart Phase = "first_chart"
	PhaseChatTurn   Phase = "chat_turn"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Backend is the part of the API client the orchestrator drives.
type Backend interface {
	Analyze(ctx context.Context, in api.AnalyzeRequest) (*api.AnalyzeResponse, error)
	Chat(ctx context.Context, in api.ChatRequest) (*api.ChatResponse, error)
	Retry(ctx context.Context, in api.RetryRequest) (*api.ChatResponse, error)
	ExecuteCode(ctx context.Context, in api.ExecuteCodeRequest) (*api.ExecuteCodeResponse, error)
	AddChart(ctx context.Context, in api.AddChartRequest) (*dashtypes.ChartSpec, error)
	AddKPI(ctx context.Context, in api.KPIRequest) (*dashtypes.ChartSpec, error)
	EditKPI(ctx context.Context, datasetID string, index int, query string) (*dashtypes.ChartSpec, error)
	DeleteChart(ctx context.Context, datasetID string, index int) error
	ApplyFilter(ctx context.Context, in api.FilterRequest) (*api.FilterResponse, error)
	SetDashboardColors(ctx context.Context, datasetID string, in api.ColorsRequest) error
}

// CodeDiffer renders the difference between two versions of chart code.
type CodeDiffer interface {
	Diff(before, after string) string
}

// Hooks observe the dashboard. They run outside the dashboard lock and may call
// back into it.
type Hooks struct {
	OnProgress   func(message string)
	OnChart      func(chart dashtypes.ChartSpec)
	OnChartReset func(chartID string) // Content replaced by an edit or filter; re-arm fix guards
}

// Dashboard is the state of one dataset's dashboard. It is safe for concurrent use.
type Dashboard struct {
	backend Backend
	ids     *ids.Generator
	differ  CodeDiffer
	hooks   Hooks
	stream  bool

	mu             sync.Mutex
	datasetID      string
	title          string
	colorTheme     string
	charts         []dashtypes.ChartSpec
	messages       []dashtypes.ChatMessage
	filters        map[string]dashtypes.FilterMap
	history        *history.Stack[[]dashtypes.ChartSpec]
	expectedKPIs   int
	expectedCharts int
	progress       string
	banner         dashtypes.Banner
	billing        dashtypes.BillingState
	phase          Phase
	loading        bool
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithIDs sets the ID generator.
func WithIDs(g *ids.Generator) Option {
	return func(d *Dashboard) {
		if g != nil {
			d.ids = g
		}
	}
}

// WithStreaming selects streamed first-chart generation.
func WithStreaming(enabled bool) Option {
	return func(d *Dashboard) {
		d.stream = enabled
	}
}

// WithColorTheme sets the palette requested for new charts.
func WithColorTheme(theme string) Option {
	return func(d *Dashboard) {
		d.colorTheme = theme
	}
}

// WithDiffer sets the code differ used when an edit replaces chart code.
func WithDiffer(differ CodeDiffer) Option {
	return func(d *Dashboard) {
		d.differ = differ
	}
}

// WithHooks sets observer callbacks.
func WithHooks(h Hooks) Option {
	return func(d *Dashboard) {
		d.hooks = h
	}
}

// New creates an empty dashboard for datasetID.
func New(backend Backend, datasetID string, opts ...Option) *Dashboard {
	d := &Dashboard{
		backend:   backend,
		ids:       ids.New(),
		stream:    true,
		datasetID: datasetID,
		charts:    []dashtypes.ChartSpec{},
		filters:   map[string]dashtypes.FilterMap{},
		history:   history.New[[]dashtypes.ChartSpec](history.DefaultLimit),
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	_ = d.history.Reset(d.charts)
	return d
}

// DatasetID returns the dataset the dashboard is built on.
func (d *Dashboard) DatasetID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.datasetID
}

// Title returns the dashboard title reported by the backend, if any.
func (d *Dashboard) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

// ColorTheme returns the current palette name.
func (d *Dashboard) ColorTheme() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.colorTheme
}

// Charts returns a deep copy of the chart array.
func (d *Dashboard) Charts() []dashtypes.ChartSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := history.Clone(d.charts)
	if err != nil {
		return append([]dashtypes.ChartSpec(nil), d.charts...)
	}
	return out
}

// Chart returns a copy of the chart with id.
func (d *Dashboard) Chart(id string) (dashtypes.ChartSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.indexLocked(id)
	if idx < 0 {
		return dashtypes.ChartSpec{}, false
	}
	c, err := history.Clone(d.charts[idx])
	if err != nil {
		return d.charts[idx], true
	}
	return c, true
}

// IndexOf resolves a chart ID to its current array index.
func (d *Dashboard) IndexOf(chartID string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.indexLocked(chartID)
	return idx, idx >= 0
}

// ChartIDAt returns the ID of the chart at index.
func (d *Dashboard) ChartIDAt(index int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.charts) {
		return "", false
	}
	return d.charts[index].ID, true
}

func (d *Dashboard) indexLocked(chartID string) int {
	for i := range d.charts {
		if d.charts[i].ID == chartID {
			return i
		}
	}
	return -1
}

// Messages returns a copy of the transcript.
func (d *Dashboard) Messages() []dashtypes.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dashtypes.ChatMessage(nil), d.messages...)
}

// Message returns the transcript entry with id.
func (d *Dashboard) Message(id string) (dashtypes.ChatMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.messages {
		if m.ID == id {
			return m, true
		}
	}
	return dashtypes.ChatMessage{}, false
}

// Phase returns the state of the current or last query.
func (d *Dashboard) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Loading reports whether a query is in flight.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Expected returns the KPI and chart counts announced by the backend.
func (d *Dashboard) Expected() (kpis, charts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expectedKPIs, d.expectedCharts
}

// Placeholders returns how many loading placeholders to show.
func (d *Dashboard) Placeholders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loading {
		return 0
	}
	n := d.expectedKPIs + d.expectedCharts - len(d.charts)
	if n < 0 {
		return 0
	}
	return n
}

// Progress returns the last progress message of a streamed generation.
func (d *Dashboard) Progress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Banner returns the status banner.
func (d *Dashboard) Banner() dashtypes.Banner {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.banner
}

// DismissBanner clears the status banner.
func (d *Dashboard) DismissBanner() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banner = dashtypes.Banner{}
}

// Billing returns the insufficient-balance state.
func (d *Dashboard) Billing() dashtypes.BillingState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.billing
}

// CloseBilling dismisses the insufficient-balance state.
func (d *Dashboard) CloseBilling() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.billing = dashtypes.BillingState{}
}

// Filters returns the filters applied to a chart on the dashboard.
func (d *Dashboard) Filters(chartID string) dashtypes.FilterMap {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := dashtypes.FilterMap{}
	if d.indexLocked(chartID) < 0 {
		return out
	}
	for k, v := range d.filters[chartID] {
		out[k] = v
	}
	return out
}

// CanUndo reports whether Undo would succeed.
func (d *Dashboard) CanUndo() bool {
	return d.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (d *Dashboard) CanRedo() bool {
	return d.history.CanRedo()
}

// HistoryIndex returns the history cursor.
func (d *Dashboard) HistoryIndex() int {
	return d.history.Index()
}

// HistoryLen returns the number of stored snapshots.
func (d *Dashboard) HistoryLen() int {
	return d.history.Len()
}

func (d *Dashboard) appendMessageLocked(m dashtypes.ChatMessage) dashtypes.ChatMessage {
	m.ID = d.ids.ID()
	m.CreatedAt = d.ids.Now()
	d.messages = append(d.messages, m)
	return m
}

func (d *Dashboard) removeMessageLocked(id string) {
	for i := range d.messages {
		if d.messages[i].ID == id {
			d.messages = append(d.messages[:i], d.messages[i+1:]...)
			return
		}
	}
}
