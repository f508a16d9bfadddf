package dashtypes

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Row maps a column name to a number (float64) or a string.
type Row map[string]any

// DatasetInfo describes an uploaded or sample dataset.
type DatasetInfo struct {
	DatasetID   string   `json:"dataset_id"`
	Filename    string   `json:"filename,omitempty"`
	ColumnNames []string `json:"column_names,omitempty"`
	Preview     []Row    `json:"preview,omitempty"`
	RowCount    int      `json:"row_count,omitempty"`
}

// DashboardMetadata summarises a dashboard in the "recent dashboards" list.
type DashboardMetadata struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DatasetID  string    `json:"dataset_id"`
	ChartCount int       `json:"chart_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// BillingState is the insufficient-balance modal state.
type BillingState struct {
	Open     bool    `json:"open"`
	Required float64 `json:"required"`
	Balance  float64 `json:"balance"`
	Plan     string  `json:"plan"`
	Message  string  `json:"message,omitempty"`
}

// BannerKind classifies the top-of-view banner.
type BannerKind string

// Banner kinds.
const (
	BannerNone  BannerKind = ""
	BannerError BannerKind = "error"
	BannerInfo  BannerKind = "info"
)

// Banner is the dismissible status banner shown above the dashboard.
type Banner struct {
	Kind    BannerKind `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Number coerces a cell or trace value to float64. Numeric strings count.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(n, ",", "")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
