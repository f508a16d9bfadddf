// Package notes keeps a chart's markdown notes in sync with the backend,
// autosaving edits after a quiet period and saving immediately on blur.
package notes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autodash/internal/logger"
)

// DefaultDebounce is the quiet period after the last edit before autosave.
const DefaultDebounce = 1500 * time.Millisecond

// Backend is the slice of the API client the panel needs.
type Backend interface {
	GetNotes(ctx context.Context, datasetID string, index int) (string, error)
	SaveNotes(ctx context.Context, datasetID string, index int, notes string) error
	Insights(ctx context.Context, datasetID string, index int) (string, error)
}

// ChartLocator resolves a chart ID to its current array index.
type ChartLocator interface {
	IndexOf(chartID string) (int, bool)
}

// Panel edits the notes of one chart. Methods are safe for concurrent use.
type Panel struct {
	backend   Backend
	locator   ChartLocator
	datasetID string
	chartID   string
	debounce  time.Duration

	// OnError receives autosave failures, which have no caller to return to.
	OnError func(error)

	mu        sync.Mutex
	text      string
	saved     string
	timer     *time.Timer
	lastErr   error
	closed    bool
	saveMu    sync.Mutex
	timeoutFn func() (context.Context, context.CancelFunc)
}

// Option configures a Panel.
type Option func(*Panel)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithSaveTimeout bounds background autosaves.
func WithSaveTimeout(d time.Duration) Option {
	return func(p *Panel) {
		p.timeoutFn = func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), d)
		}
	}
}

// NewPanel creates a notes panel for chartID.
func NewPanel(backend Backend, locator ChartLocator, datasetID, chartID string, opts ...Option) *Panel {
	p := &Panel{
		backend:   backend,
		locator:   locator,
		datasetID: datasetID,
		chartID:   chartID,
		debounce:  DefaultDebounce,
		timeoutFn: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 30*time.Second)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Panel) index() (int, error) {
	idx, ok := p.locator.IndexOf(p.chartID)
	if !ok {
		return 0, fmt.Errorf("chart %s is no longer on the dashboard", p.chartID)
	}
	return idx, nil
}

// Load fetches the stored notes and makes them the current text.
func (p *Panel) Load(ctx context.Context) (string, error) {
	idx, err := p.index()
	if err != nil {
		return "", err
	}
	text, err := p.backend.GetNotes(ctx, p.datasetID, idx)
	if err != nil {
		return "", fmt.Errorf("failed to load notes: %w", err)
	}

	p.mu.Lock()
	p.text, p.saved = text, text
	p.mu.Unlock()
	return text, nil
}

// Text returns the current, possibly unsaved, text.
func (p *Panel) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

// Dirty reports whether the current text differs from the last saved text.
func (p *Panel) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text != p.saved
}

// LastError returns the most recent save failure, or nil.
func (p *Panel) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Edit replaces the text and restarts the autosave timer.
func (p *Panel) Edit(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.text = text
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.autosave)
}

func (p *Panel) autosave() {
	ctx, cancel := p.timeoutFn()
	defer cancel()
	if err := p.save(ctx); err != nil {
		logger.Warn("Notes autosave failed", "chart_id", p.chartID, "error", err)
		if p.OnError != nil {
			p.OnError(err)
		}
	}
}

// Blur saves immediately and cancels any pending autosave.
func (p *Panel) Blur(ctx context.Context) error {
	p.stopTimer()
	return p.save(ctx)
}

func (p *Panel) stopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// save stores the current text unless it matches what was last saved.
func (p *Panel) save(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	text, saved := p.text, p.saved
	p.mu.Unlock()
	if text == saved {
		return nil
	}

	idx, err := p.index()
	if err == nil {
		err = p.backend.SaveNotes(ctx, p.datasetID, idx, text)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = fmt.Errorf("failed to save notes: %w", err)
		return p.lastErr
	}
	p.saved = text
	p.lastErr = nil
	logger.Debug("Notes saved", "chart_id", p.chartID, "chart_index", idx, "length", len(text))
	return nil
}

// Insights asks the backend for commentary, appends it after a blank line and
// saves the result.
func (p *Panel) Insights(ctx context.Context) (string, error) {
	idx, err := p.index()
	if err != nil {
		return "", err
	}
	insights, err := p.backend.Insights(ctx, p.datasetID, idx)
	if err != nil {
		return "", fmt.Errorf("failed to generate insights: %w", err)
	}
	insights = strings.TrimSpace(insights)

	p.mu.Lock()
	switch {
	case insights == "":
	case strings.TrimSpace(p.text) == "":
		p.text = insights
	default:
		p.text = strings.TrimRight(p.text, "\n") + "\n\n" + insights
	}
	text := p.text
	p.mu.Unlock()

	p.stopTimer()
	if err := p.save(ctx); err != nil {
		return text, err
	}
	return text, nil
}

// Close flushes unsaved edits and stops the panel.
func (p *Panel) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.stopTimer()
	return p.save(ctx)
}
