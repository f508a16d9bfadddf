package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"autodash/pkg/dashtypes"
)

// FixRequest asks the backend to repair a chart that failed to render.
type FixRequest struct {
	DatasetID  string `json:"dataset_id"`
	ChartIndex int    `json:"chart_index"`
	ChartSpec  string `json:"chart_spec"`
	Error      string `json:"error"`
}

// FixResponse carries the repaired code and figure.
type FixResponse struct {
	Success   bool              `json:"success"`
	FixedCode string            `json:"fixed_code"`
	Figure    *dashtypes.Figure `json:"figure"`
	Error     string            `json:"error,omitempty"`
}

// FixVisualization posts to /api/data/fix-visualization.
func (c *Client) FixVisualization(ctx context.Context, in FixRequest) (*FixResponse, error) {
	var out FixResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/fix-visualization", nil), in, &out); err != nil {
		return nil, err
	}
	if out.Figure == nil {
		msg := out.Error
		if msg == "" {
			msg = "no figure returned"
		}
		return nil, fmt.Errorf("fix failed: %s", msg)
	}
	return &out, nil
}

// FilterRequest restricts a chart's query by per-column predicates.
type FilterRequest struct {
	DatasetID  string              `json:"dataset_id"`
	ChartIndex int                 `json:"chart_index"`
	Filters    dashtypes.FilterMap `json:"filters"`
}

// FilterResponse is the chart recomputed under the filter.
type FilterResponse struct {
	Figure    *dashtypes.Figure `json:"figure"`
	ChartSpec string            `json:"chart_spec,omitempty"`
}

// ApplyFilter posts to /api/data/apply-filter. An empty filter map clears filters.
func (c *Client) ApplyFilter(ctx context.Context, in FilterRequest) (*FilterResponse, error) {
	if in.Filters == nil {
		in.Filters = dashtypes.FilterMap{}
	}
	var out FilterResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/apply-filter", nil), in, &out); err != nil {
		return nil, err
	}
	if out.Figure == nil {
		return nil, fmt.Errorf("filter response carried no figure")
	}
	return &out, nil
}

// AddChartRequest creates a new chart from a query or from executable code.
type AddChartRequest struct {
	DatasetID  string `json:"dataset_id"`
	Query      string `json:"query,omitempty"`
	Code       string `json:"code,omitempty"`
	ColorTheme string `json:"color_theme,omitempty"`
}

type chartResponse struct {
	Chart *dashtypes.ChartSpec `json:"chart"`
}

// AddChart posts to /api/data/add-chart.
func (c *Client) AddChart(ctx context.Context, in AddChartRequest) (*dashtypes.ChartSpec, error) {
	return c.postChart(ctx, "/api/data/add-chart", in)
}

// KPIRequest creates or edits a KPI card.
type KPIRequest struct {
	DatasetID  string `json:"dataset_id"`
	Query      string `json:"query"`
	ChartIndex *int   `json:"chart_index,omitempty"`
}

// AddKPI posts to /api/data/add-kpi.
func (c *Client) AddKPI(ctx context.Context, in KPIRequest) (*dashtypes.ChartSpec, error) {
	in.ChartIndex = nil
	return c.postChart(ctx, "/api/data/add-kpi", in)
}

// EditKPI posts to /api/data/edit-kpi for the KPI at index.
func (c *Client) EditKPI(ctx context.Context, datasetID string, index int, query string) (*dashtypes.ChartSpec, error) {
	return c.postChart(ctx, "/api/data/edit-kpi", KPIRequest{DatasetID: datasetID, Query: query, ChartIndex: &index})
}

func (c *Client) postChart(ctx context.Context, path string, in any) (*dashtypes.ChartSpec, error) {
	var out chartResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint(path, nil), in, &out); err != nil {
		return nil, err
	}
	if out.Chart == nil {
		return nil, fmt.Errorf("%s response carried no chart", path)
	}
	return out.Chart, nil
}

// DeleteChart removes the chart at index on the backend.
func (c *Client) DeleteChart(ctx context.Context, datasetID string, index int) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint("/api/data/datasets/%s/charts/%s", nil, datasetID, strconv.Itoa(index)), nil, nil)
}
