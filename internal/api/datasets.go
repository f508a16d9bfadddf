package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"autodash/internal/logger"
	"autodash/pkg/dashtypes"
)

type uploadResponse struct {
	DatasetID string `json:"dataset_id"`
	FileInfo  struct {
		Filename    string          `json:"filename"`
		ColumnNames []string        `json:"column_names"`
		Preview     []dashtypes.Row `json:"preview"`
		RowCount    int             `json:"row_count"`
	} `json:"file_info"`
}

// Upload sends a local file as multipart form data.
func (c *Client) Upload(ctx context.Context, path string) (*dashtypes.DatasetInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader streams r as the "file" form field named filename.
func (c *Client) UploadReader(ctx context.Context, filename string, r io.Reader) (*dashtypes.DatasetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/api/data/upload", nil), pr, mw.FormDataContentType())
	if err != nil {
		_ = pr.Close()
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out uploadResponse
	if err := decodeBody(resp.Body, &out); err != nil {
		return nil, err
	}
	if out.DatasetID == "" {
		return nil, fmt.Errorf("upload response carried no dataset_id")
	}

	logger.Debug("Dataset uploaded", "dataset_id", out.DatasetID, "filename", filename, "columns", len(out.FileInfo.ColumnNames))

	name := out.FileInfo.Filename
	if name == "" {
		name = filename
	}
	return &dashtypes.DatasetInfo{
		DatasetID:   out.DatasetID,
		Filename:    name,
		ColumnNames: out.FileInfo.ColumnNames,
		Preview:     out.FileInfo.Preview,
		RowCount:    out.FileInfo.RowCount,
	}, nil
}

type sampleResponse struct {
	DatasetID   string `json:"dataset_id"`
	DatasetInfo struct {
		Name        string          `json:"name"`
		Filename    string          `json:"filename"`
		ColumnNames []string        `json:"column_names"`
		Columns     []string        `json:"columns"`
		Preview     []dashtypes.Row `json:"preview"`
		RowCount    int             `json:"row_count"`
		Rows        int             `json:"rows"`
	} `json:"dataset_info"`
}

// LoadSample asks the backend to load its bundled sample dataset.
func (c *Client) LoadSample(ctx context.Context) (*dashtypes.DatasetInfo, error) {
	var out sampleResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/sample/load", nil), struct{}{}, &out); err != nil {
		return nil, err
	}
	if out.DatasetID == "" {
		return nil, fmt.Errorf("sample response carried no dataset_id")
	}

	info := out.DatasetInfo
	columns := info.ColumnNames
	if len(columns) == 0 {
		columns = info.Columns
	}
	name := info.Filename
	if name == "" {
		name = info.Name
	}
	rows := info.RowCount
	if rows == 0 {
		rows = info.Rows
	}
	return &dashtypes.DatasetInfo{
		DatasetID:   out.DatasetID,
		Filename:    name,
		ColumnNames: columns,
		Preview:     info.Preview,
		RowCount:    rows,
	}, nil
}

// Table is a page of dataset rows.
type Table struct {
	Columns   []string        `json:"columns"`
	Rows      []dashtypes.Row `json:"rows"`
	TotalRows int             `json:"total_rows,omitempty"`
}

// Preview fetches the first rows of a dataset.
func (c *Client) Preview(ctx context.Context, datasetID string, rows int) (*Table, error) {
	q := url.Values{}
	q.Set("rows", strconv.Itoa(rows))

	var out Table
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/data/datasets/%s/preview", q, datasetID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FullData fetches up to limit rows of a dataset.
func (c *Client) FullData(ctx context.Context, datasetID string, limit int) (*Table, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var out Table
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/data/datasets/%s/full", q, datasetID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type dashboardsResponse struct {
	Dashboards []dashtypes.DashboardMetadata `json:"dashboards"`
}

// RecentDashboards lists the caller's recent dashboards.
func (c *Client) RecentDashboards(ctx context.Context) ([]dashtypes.DashboardMetadata, error) {
	var out dashboardsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/data/dashboards", nil), nil, &out); err != nil {
		return nil, err
	}
	return out.Dashboards, nil
}
