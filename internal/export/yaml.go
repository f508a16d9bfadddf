package export

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"autodash/internal/dashboard"
	"autodash/pkg/dashtypes"
)

type yamlDocument struct {
	DatasetID  string                         `yaml:"dataset_id"`
	Title      string                         `yaml:"title,omitempty"`
	ColorTheme string                         `yaml:"color_theme,omitempty"`
	ExportedAt time.Time                      `yaml:"exported_at"`
	Charts     []yamlChart                    `yaml:"charts"`
	Filters    map[string]dashtypes.FilterMap `yaml:"filters,omitempty"`
	Transcript []yamlMessage                  `yaml:"transcript,omitempty"`
}

type yamlChart struct {
	ID             string            `yaml:"id"`
	Index          int               `yaml:"index"`
	Title          string            `yaml:"title"`
	Type           string            `yaml:"type,omitempty"`
	Code           string            `yaml:"code,omitempty"`
	ExecutionError string            `yaml:"execution_error,omitempty"`
	Traces         []string          `yaml:"traces,omitempty"`
	Figure         *dashtypes.Figure `yaml:"figure,omitempty"`
}

type yamlMessage struct {
	Type    dashtypes.MessageType `yaml:"type"`
	Message string                `yaml:"message"`
	Code    string                `yaml:"code,omitempty"`
}

// YAMLOptions controls the YAML dump.
type YAMLOptions struct {
	Figures    bool // Include full figure objects
	Transcript bool // Include chat messages
	Now        func() time.Time
}

// YAML writes a readable dump of a dashboard.
func YAML(w io.Writer, st dashboard.State, o YAMLOptions) error {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	doc := yamlDocument{
		DatasetID:  st.DatasetID,
		Title:      st.Title,
		ColorTheme: st.ColorTheme,
		ExportedAt: now().UTC(),
		Charts:     make([]yamlChart, 0, len(st.Charts)),
	}
	for i := range st.Charts {
		c := &st.Charts[i]
		if f, ok := st.Filters[c.ID]; ok {
			if doc.Filters == nil {
				doc.Filters = map[string]dashtypes.FilterMap{}
			}
			doc.Filters[c.ID] = f
		}
		yc := yamlChart{
			ID:             c.ID,
			Index:          c.ChartIndex,
			Title:          c.DisplayTitle(),
			Type:           c.ChartType,
			Code:           c.ChartSpec,
			ExecutionError: c.ExecutionError,
		}
		if c.Figure != nil {
			for _, tr := range c.Figure.Data {
				yc.Traces = append(yc.Traces, tr.Type())
			}
			if o.Figures {
				yc.Figure = c.Figure
			}
		}
		doc.Charts = append(doc.Charts, yc)
	}
	if o.Transcript {
		for _, m := range st.Messages {
			doc.Transcript = append(doc.Transcript, yamlMessage{Type: m.Type, Message: m.Message, Code: m.ExecutableCode})
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	return enc.Close()
}
