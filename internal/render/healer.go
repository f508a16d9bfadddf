package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"autodash/internal/api"
	"autodash/internal/logger"
	"autodash/pkg/dashtypes"
)

// Fixer repairs a chart that failed to render. *api.Client implements it.
type Fixer interface {
	FixVisualization(ctx context.Context, in api.FixRequest) (*api.FixResponse, error)
}

// FixedFunc receives a successful repair so the owner can replace the chart.
type FixedFunc func(chartID, fixedCode string, fig *dashtypes.Figure)

// fixCall is one in-flight repair shared by every renderer waiting on it.
type fixCall struct {
	done chan struct{}
	resp *api.FixResponse
	err  error
}

// SelfHealer renders charts and, when a figure is missing or fails to render,
// asks the backend to fix it. At most one fix is issued per chart entity until
// Reset is called for that chart.
type SelfHealer struct {
	Renderer  Renderer
	Fixer     Fixer
	DatasetID string
	Options   Options
	OnFixed   FixedFunc

	mu        sync.Mutex
	attempted map[string]bool
	inflight  map[string]*fixCall
}

// NewSelfHealer creates a healer for charts of one dataset.
func NewSelfHealer(renderer Renderer, fixer Fixer, datasetID string) *SelfHealer {
	return &SelfHealer{
		Renderer:  renderer,
		Fixer:     fixer,
		DatasetID: datasetID,
		attempted: make(map[string]bool),
		inflight:  make(map[string]*fixCall),
	}
}

// Render draws chart to w, repairing it once if needed. The returned error is
// a *Error with a sanitized message when the chart cannot be shown.
func (h *SelfHealer) Render(ctx context.Context, chart *dashtypes.ChartSpec, w io.Writer) error {
	raw := h.tryRender(chart.Figure, w)
	if raw == "" {
		return nil
	}
	if chart.Figure == nil && chart.ExecutionError != "" {
		raw = chart.ExecutionError
	}

	call, leader := h.claim(chart)
	if call == nil {
		logger.Debug("Chart fix already attempted", "chart_id", chart.ID, "chart_index", chart.ChartIndex)
		return newError(chart.ID, raw)
	}

	if leader {
		h.fix(ctx, chart, raw, call)
	} else {
		select {
		case <-call.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if call.err != nil {
		logger.Warn("Chart fix failed", "chart_id", chart.ID, "error", call.err)
		return newError(chart.ID, raw)
	}
	if again := h.tryRender(call.resp.Figure, w); again != "" {
		return newError(chart.ID, again)
	}
	return nil
}

// tryRender returns the raw failure text, or "" on success.
func (h *SelfHealer) tryRender(fig *dashtypes.Figure, w io.Writer) string {
	if fig == nil {
		return "figure is missing"
	}
	// Buffer so a failed attempt leaves nothing behind in w.
	var buf bytes.Buffer
	err := h.Renderer.Render(fig, &buf, h.Options)
	if err == nil {
		if _, werr := w.Write(buf.Bytes()); werr != nil {
			return werr.Error()
		}
		return ""
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Raw
	}
	return err.Error()
}

// claim returns the fix call for chart and whether the caller must run it. A
// nil call means the one-shot fix was already spent.
func (h *SelfHealer) claim(chart *dashtypes.ChartSpec) (*fixCall, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if call, ok := h.inflight[chart.ID]; ok {
		return call, false
	}
	if chart.FixAttempted || h.attempted[chart.ID] {
		return nil, false
	}

	call := &fixCall{done: make(chan struct{})}
	h.attempted[chart.ID] = true
	h.inflight[chart.ID] = call
	return call, true
}

func (h *SelfHealer) fix(ctx context.Context, chart *dashtypes.ChartSpec, raw string, call *fixCall) {
	defer func() {
		h.mu.Lock()
		delete(h.inflight, chart.ID)
		h.mu.Unlock()
		close(call.done)
	}()

	logger.Debug("Requesting chart fix", "chart_id", chart.ID, "chart_index", chart.ChartIndex, "error", raw)
	call.resp, call.err = h.Fixer.FixVisualization(ctx, api.FixRequest{
		DatasetID:  h.DatasetID,
		ChartIndex: chart.ChartIndex,
		ChartSpec:  chart.ChartSpec,
		Error:      raw,
	})
	if call.err == nil && h.OnFixed != nil {
		h.OnFixed(chart.ID, call.resp.FixedCode, call.resp.Figure)
	}
}

// Attempted reports whether the chart's one-shot fix has been spent.
func (h *SelfHealer) Attempted(chartID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempted[chartID]
}

// Reset re-arms the fix guard for a chart whose content was replaced.
func (h *SelfHealer) Reset(chartID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempted, chartID)
}
