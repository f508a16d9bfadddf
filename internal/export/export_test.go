package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"autodash/internal/api"
	"autodash/internal/dashboard"
	"autodash/internal/render"
	"autodash/pkg/dashtypes"
)

func sampleCharts() []dashtypes.ChartSpec {
	return []dashtypes.ChartSpec{
		{
			ID:         "kpi-1",
			Title:      "Revenue",
			ChartType:  dashtypes.ChartTypeKPICard,
			ChartIndex: 0,
			Figure:     &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "indicator", "value": 12500.0, "number": map[string]any{"prefix": "$"}}}},
		},
		{
			ID:         "bar-1",
			Title:      "Sales by region",
			ChartType:  "bar",
			ChartIndex: 1,
			ChartSpec:  "px.bar(df, x='region', y='sales')",
			Figure:     &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "bar", "x": []any{"north", "south"}, "y": []any{10.0, 20.0}}}},
		},
		{
			ID:         "pie-1",
			Title:      "Share",
			ChartType:  "pie",
			ChartIndex: 2,
			Figure:     &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "pie", "labels": []any{"a", "b"}, "values": []any{1.0, 3.0}}}},
		},
		{
			ID:         "broken-1",
			Title:      "Broken",
			ChartType:  "heatmap",
			ChartIndex: 3,
			Figure:     &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "heatmap", "z": []any{1.0}}}},
		},
	}
}

func TestCaptureSkipsFailures(t *testing.T) {
	charts := sampleCharts()
	images, failures := Capture(context.Background(), charts, Static(render.NewPNGRenderer(), render.Options{Width: 320, Height: 240}))

	require.Len(t, images, 3)
	assert.Equal(t, 1, images[1].ChartIndex)
	assert.Equal(t, "Sales by region", images[1].Title)

	png, err := DecodeImage(images[1])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	require.Len(t, failures, 1)
	assert.Equal(t, "broken-1", failures[0].ChartID)
	var rerr *render.Error
	assert.True(t, errors.As(failures[0].Err, &rerr))
}

func TestCaptureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images, failures := Capture(ctx, sampleCharts(), Static(render.NewPNGRenderer(), render.Options{}))
	assert.Empty(t, images)
	assert.Len(t, failures, 4)
}

type stubPackager struct {
	zip, pdf int
	last     api.ExportRequest
}

func (s *stubPackager) ChartsZip(_ context.Context, in api.ExportRequest) ([]byte, error) {
	s.zip++
	s.last = in
	return []byte("PK"), nil
}

func (s *stubPackager) DashboardPDF(_ context.Context, in api.ExportRequest) ([]byte, error) {
	s.pdf++
	s.last = in
	return []byte("%PDF"), nil
}

func TestPackage(t *testing.T) {
	p := &stubPackager{}
	images := []api.ExportImage{{ChartIndex: 0, Title: "A", Image: "aGk="}}

	out, err := Package(context.Background(), p, FormatZip, "ds-1", "Dash", images)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), out)
	assert.Equal(t, "ds-1", p.last.DatasetID)
	assert.Equal(t, "Dash", p.last.Title)

	out, err = Package(context.Background(), p, FormatPDF, "ds-1", "", images)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), out)
	assert.Equal(t, 1, p.zip)
	assert.Equal(t, 1, p.pdf)

	_, err = Package(context.Background(), p, FormatZip, "ds-1", "", nil)
	assert.ErrorIs(t, err, ErrNothingCaptured)

	_, err = Package(context.Background(), p, Format("tar"), "ds-1", "", images)
	assert.Error(t, err)
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, "Q3 <Sales>", sampleCharts(), []string{"#1f77b4", "#ff7f0e"}))

	page := buf.String()
	assert.Contains(t, page, "Q3 &lt;Sales&gt;")
	assert.Contains(t, page, "autodash-kpi")
	assert.Contains(t, page, "$12.5K")
	assert.Contains(t, page, "Sales by region")
	assert.Contains(t, page, "Broken: unsupported trace type")
}

func TestHTMLKPIError(t *testing.T) {
	charts := []dashtypes.ChartSpec{{
		ID:             "k",
		Title:          "Orders",
		ChartType:      dashtypes.ChartTypeKPICard,
		ExecutionError: "NameError: name 'orders' is not defined",
	}}
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, "", charts, nil))
	assert.Contains(t, buf.String(), "NameError")
	assert.Contains(t, buf.String(), "AutoDash dashboard")
}

func TestHTMLNothingToExport(t *testing.T) {
	charts := []dashtypes.ChartSpec{{ID: "x", Figure: &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "sankey", "x": []any{1.0}}}}}}
	err := HTML(io.Discard, "", charts, nil)
	assert.ErrorIs(t, err, ErrNothingCaptured)
}

func TestHistogramBins(t *testing.T) {
	spec := &dashtypes.ChartSpec{Title: "Ages", Figure: &dashtypes.Figure{Data: []dashtypes.Trace{{
		"type": "histogram", "x": []any{1.0, 2.0, 2.0, 9.0}, "nbinsx": 2.0,
	}}}}
	bar, err := histogramChart(spec, nil)
	require.NoError(t, err)
	assert.NotNil(t, bar)
}

func TestHTMLHistogramOutOfRange(t *testing.T) {
	charts := []dashtypes.ChartSpec{
		{ID: "a", Title: "Ages", Figure: &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "histogram", "x": []any{1.0, 2.0}, "nbinsx": 1e19}}}},
		{ID: "b", Title: "Sales", Figure: &dashtypes.Figure{Data: []dashtypes.Trace{{"type": "bar", "x": []any{"n"}, "y": []any{1.0}}}}},
	}
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, "Dash", charts, nil))
	assert.Contains(t, buf.String(), "nbinsx 1e+19 is out of range")
}

func TestYAML(t *testing.T) {
	st := dashboard.State{
		DatasetID: "ds-1",
		Title:     "Sales",
		Charts:    sampleCharts()[1:2],
		Messages:  []dashtypes.ChatMessage{{Type: dashtypes.MessageUser, Message: "show sales"}},
		Filters: map[string]dashtypes.FilterMap{
			"bar-1":  {"region": {Type: dashtypes.FilterCategorical, Values: []string{"north"}}},
			"gone-9": {"segment": {Type: dashtypes.FilterCategorical, Values: []string{"retail"}}},
		},
	}
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, st, YAMLOptions{Transcript: true, Now: func() time.Time { return fixed }}))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "ds-1", doc["dataset_id"])
	assert.Equal(t, "Sales", doc["title"])

	charts := doc["charts"].([]any)
	require.Len(t, charts, 1)
	first := charts[0].(map[string]any)
	assert.Equal(t, "bar-1", first["id"])
	assert.Equal(t, []any{"bar"}, first["traces"])
	assert.NotContains(t, first, "figure")

	assert.True(t, strings.Contains(buf.String(), "show sales"))
	assert.Contains(t, buf.String(), "categorical")
	assert.NotContains(t, buf.String(), "gone-9", "filters of deleted charts are not exported")
}
