package api

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

type notesBody struct {
	Notes string `json:"notes"`
}

// GetNotes loads the markdown notes of the chart at index.
func (c *Client) GetNotes(ctx context.Context, datasetID string, index int) (string, error) {
	var out notesBody
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/data/datasets/%s/charts/%s/notes", nil, datasetID, strconv.Itoa(index)), nil, &out); err != nil {
		return "", err
	}
	return out.Notes, nil
}

// SaveNotes stores the markdown notes of the chart at index.
func (c *Client) SaveNotes(ctx context.Context, datasetID string, index int, notes string) error {
	return c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/datasets/%s/charts/%s/notes", nil, datasetID, strconv.Itoa(index)), notesBody{Notes: notes}, nil)
}

type insightsResponse struct {
	Insights string `json:"insights"`
}

// Insights asks the backend to generate commentary for the chart at index.
func (c *Client) Insights(ctx context.Context, datasetID string, index int) (string, error) {
	var out insightsResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/datasets/%s/charts/%s/insights", nil, datasetID, strconv.Itoa(index)), struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Insights, nil
}

// ShareLink is a public link to a dashboard.
type ShareLink struct {
	ShareURL  string     `json:"share_url"`
	ShareID   string     `json:"share_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Share creates a share link for the dataset's dashboard.
func (c *Client) Share(ctx context.Context, datasetID string) (*ShareLink, error) {
	var out ShareLink
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/datasets/%s/share", nil, datasetID), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ColorsRequest updates the dashboard palette.
type ColorsRequest struct {
	ColorTheme string   `json:"color_theme"`
	Colors     []string `json:"colors,omitempty"`
}

// SetDashboardColors PUTs the palette for the dataset's dashboard.
func (c *Client) SetDashboardColors(ctx context.Context, datasetID string, in ColorsRequest) error {
	return c.doJSON(ctx, http.MethodPut, c.endpoint("/api/data/datasets/%s/dashboard/colors", nil, datasetID), in, nil)
}

// ExportImage is one captured chart image, base64-encoded PNG.
type ExportImage struct {
	ChartIndex int    `json:"chart_index"`
	Title      string `json:"title"`
	Image      string `json:"image"`
}

// ExportRequest is the body of both packaging endpoints.
type ExportRequest struct {
	DatasetID string        `json:"dataset_id"`
	Title     string        `json:"title,omitempty"`
	Images    []ExportImage `json:"images"`
}

// ChartsZip packages images into a zip archive.
func (c *Client) ChartsZip(ctx context.Context, in ExportRequest) ([]byte, error) {
	return c.doBinary(ctx, http.MethodPost, c.endpoint("/api/export/charts-zip-from-images", nil), in)
}

// DashboardPDF packages images into a PDF document.
func (c *Client) DashboardPDF(ctx context.Context, in ExportRequest) ([]byte, error) {
	return c.doBinary(ctx, http.MethodPost, c.endpoint("/api/export/dashboard-pdf-from-images", nil), in)
}
