package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"autodash/internal/sse"
	"autodash/pkg/dashtypes"
)

// AnalyzeRequest asks for the first dashboard of a dataset.
type AnalyzeRequest struct {
	Query      string `json:"query"`
	DatasetID  string `json:"dataset_id"`
	ColorTheme string `json:"color_theme,omitempty"`
	Stream     bool   `json:"stream"`
}

// AnalyzeResult is the one-shot JSON body of /api/data/analyze.
type AnalyzeResult struct {
	Charts         []dashtypes.ChartSpec `json:"charts"`
	KPICards       []dashtypes.ChartSpec `json:"kpi_cards"`
	Message        string                `json:"message"`
	DashboardTitle string                `json:"dashboard_title,omitempty"`
	TotalCharts    *int                  `json:"total_charts,omitempty"`
	TotalKPIs      *int                  `json:"total_kpis,omitempty"`
}

// AnalyzeResponse carries exactly one of Stream or Result.
type AnalyzeResponse struct {
	Stream *sse.Stream
	Result *AnalyzeResult

	cancel context.CancelFunc
}

// Close releases the stream when present.
func (r *AnalyzeResponse) Close() error {
	if r == nil {
		return nil
	}
	if r.cancel != nil {
		defer r.cancel()
	}
	if r.Stream != nil {
		return r.Stream.Close()
	}
	return nil
}

// Analyze posts the first-chart query. When the backend answers with an event
// stream the caller must Close the returned response. A streamed request is
// bounded by ctx only; a one-shot request also gets the client timeout.
func (c *Client) Analyze(ctx context.Context, in AnalyzeRequest) (*AnalyzeResponse, error) {
	payload, err := sonic.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	cancel := context.CancelFunc(func() {})
	if !in.Stream {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/api/data/analyze", nil), bytes.NewReader(payload), "application/json")
	if err != nil {
		cancel()
		return nil, err
	}
	if in.Stream {
		req.Header.Set("Accept", sse.ContentType+", application/json")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		cancel()
		return nil, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), sse.ContentType) {
		return &AnalyzeResponse{Stream: sse.NewStream(resp.Body), cancel: cancel}, nil
	}

	defer func() {
		_ = resp.Body.Close()
		cancel()
	}()
	var result AnalyzeResult
	if err := decodeBody(resp.Body, &result); err != nil {
		return nil, err
	}
	return &AnalyzeResponse{Result: &result}, nil
}
