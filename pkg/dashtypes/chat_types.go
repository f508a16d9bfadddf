// Package dashtypes defines transcript types for the AutoDash assistant.
// This file contains chat message shapes and code types returned by the chat endpoints.
package dashtypes

import "time"

// MessageType tags a transcript entry.
type MessageType string

// Transcript entry kinds.
const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageError     MessageType = "error"
)

// CodeType classifies executable code attached to an assistant reply.
type CodeType string

// Code types understood by /api/data/execute-code and /api/data/add-chart.
const (
	CodePlotlyEdit CodeType = "plotly_edit"
	CodeAnalysis   CodeType = "analysis"
	CodeAddChart   CodeType = "add_chart"
)

// Valid reports whether the code type is one the client can execute.
func (c CodeType) Valid() bool {
	switch c {
	case CodePlotlyEdit, CodeAnalysis, CodeAddChart:
		return true
	}
	return false
}

// MatchedChart identifies the chart an assistant reply targets.
type MatchedChart struct {
	ChartIndex int    `json:"chart_index"`
	Title      string `json:"title,omitempty"`
	ChartID    string `json:"chart_id,omitempty"` // Resolved client-side when the reply arrives
}

// ChatMessage is one append-only transcript entry.
type ChatMessage struct {
	ID             string        `json:"id"`
	Type           MessageType   `json:"type"`
	Message        string        `json:"message"`
	MatchedChart   *MatchedChart `json:"matched_chart,omitempty"`
	CodeType       CodeType      `json:"code_type,omitempty"`
	ExecutableCode string        `json:"executable_code,omitempty"`
	Failed         bool          `json:"failed,omitempty"`
	Retryable      bool          `json:"retryable,omitempty"`
	OriginalQuery  string        `json:"original_query,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// HasCode reports whether the message carries code the user can run.
func (m *ChatMessage) HasCode() bool {
	return m.ExecutableCode != "" && m.CodeType.Valid()
}
