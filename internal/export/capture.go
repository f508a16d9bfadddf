// Package export captures dashboard charts as images and packages them as a
// zip archive, a PDF, an offline HTML page or a YAML document.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"autodash/internal/api"
	"autodash/internal/logger"
	"autodash/internal/render"
	"autodash/pkg/dashtypes"
)

// ErrNothingCaptured is returned when no chart could be rendered.
var ErrNothingCaptured = errors.New("no chart could be captured")

// ChartRenderer draws one chart entity. *render.SelfHealer satisfies it.
type ChartRenderer interface {
	Render(ctx context.Context, chart *dashtypes.ChartSpec, w io.Writer) error
}

// Static adapts a figure renderer that never repairs charts.
func Static(r render.Renderer, opts render.Options) ChartRenderer {
	return staticRenderer{r: r, opts: opts}
}

type staticRenderer struct {
	r    render.Renderer
	opts render.Options
}

func (s staticRenderer) Render(_ context.Context, chart *dashtypes.ChartSpec, w io.Writer) error {
	return s.r.Render(chart.Figure, w, s.opts)
}

// Failure records a chart that could not be captured.
type Failure struct {
	ChartID string
	Title   string
	Err     error
}

// Capture renders each chart to a base64 PNG. Charts that fail are skipped and
// reported; the result is empty only if every chart failed.
func Capture(ctx context.Context, charts []dashtypes.ChartSpec, r ChartRenderer) ([]api.ExportImage, []Failure) {
	images := make([]api.ExportImage, 0, len(charts))
	var failures []Failure

	for i := range charts {
		if ctx.Err() != nil {
			failures = append(failures, Failure{ChartID: charts[i].ID, Title: charts[i].DisplayTitle(), Err: ctx.Err()})
			continue
		}
		var buf bytes.Buffer
		if err := r.Render(ctx, &charts[i], &buf); err != nil {
			logger.Debug("Chart capture failed", "chart_id", charts[i].ID, "error", err)
			failures = append(failures, Failure{ChartID: charts[i].ID, Title: charts[i].DisplayTitle(), Err: err})
			continue
		}
		images = append(images, api.ExportImage{
			ChartIndex: charts[i].ChartIndex,
			Title:      charts[i].DisplayTitle(),
			Image:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
	}
	return images, failures
}

// Packager turns captured images into downloadable documents.
type Packager interface {
	ChartsZip(ctx context.Context, in api.ExportRequest) ([]byte, error)
	DashboardPDF(ctx context.Context, in api.ExportRequest) ([]byte, error)
}

// Format is a packaged export kind.
type Format string

// Packaged formats.
const (
	FormatZip Format = "zip"
	FormatPDF Format = "pdf"
)

// Package sends images to the backend packaging endpoint for format.
func Package(ctx context.Context, p Packager, format Format, datasetID, title string, images []api.ExportImage) ([]byte, error) {
	if len(images) == 0 {
		return nil, ErrNothingCaptured
	}
	req := api.ExportRequest{DatasetID: datasetID, Title: title, Images: images}
	switch format {
	case FormatZip:
		return p.ChartsZip(ctx, req)
	case FormatPDF:
		return p.DashboardPDF(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// DecodeImage returns the PNG bytes of a captured image.
func DecodeImage(img api.ExportImage) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(img.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", img.Title, err)
	}
	return data, nil
}
