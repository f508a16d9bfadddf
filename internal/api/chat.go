package api

import (
	"context"
	"net/http"

	"autodash/pkg/dashtypes"
)

// ChatRequest is a conversational turn against an existing dashboard.
type ChatRequest struct {
	Message    string   `json:"message"`
	DatasetID  string   `json:"dataset_id"`
	ChartTitle []string `json:"chart_titles,omitempty"`
}

// ChatResponse is the assistant's reply, optionally carrying code to run.
type ChatResponse struct {
	Response       string                  `json:"response"`
	CodeType       dashtypes.CodeType      `json:"code_type,omitempty"`
	ExecutableCode string                  `json:"executable_code,omitempty"`
	MatchedChart   *dashtypes.MatchedChart `json:"matched_chart,omitempty"`
}

// Chat sends one turn to /api/chat.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/chat", nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryRequest replays a failed query.
type RetryRequest struct {
	OriginalQuery string `json:"original_query"`
	DatasetID     string `json:"dataset_id"`
}

// Retry sends a failed query again through /api/chat/retry.
func (c *Client) Retry(ctx context.Context, in RetryRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/chat/retry", nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecuteCodeRequest runs assistant-provided code on the backend.
type ExecuteCodeRequest struct {
	Code       string             `json:"code"`
	DatasetID  string             `json:"dataset_id"`
	CodeType   dashtypes.CodeType `json:"code_type"`
	ChartIndex *int               `json:"chart_index,omitempty"`
}

// ExecuteCodeResponse is the outcome of an execution. Analysis runs fill Output;
// plotly edits fill Figure and ChartSpec.
type ExecuteCodeResponse struct {
	Success    bool              `json:"success"`
	Output     string            `json:"output,omitempty"`
	Figure     *dashtypes.Figure `json:"figure,omitempty"`
	ChartSpec  string            `json:"chart_spec,omitempty"`
	ChartIndex *int              `json:"chart_index,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ExecuteCode posts to /api/data/execute-code.
func (c *Client) ExecuteCode(ctx context.Context, in ExecuteCodeRequest) (*ExecuteCodeResponse, error) {
	var out ExecuteCodeResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/data/execute-code", nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
