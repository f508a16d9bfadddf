package api

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// HTTPError is a non-2xx backend response. Detail holds the backend's
// human-readable reason when one could be extracted.
type HTTPError struct {
	StatusCode int
	Status     string
	Detail     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %s", e.Status)
}

// Message returns the text to show a user.
func (e *HTTPError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Status
}

// InsufficientCreditsError is the billing condition signalled by HTTP 402 with
// an insufficient_credits payload.
type InsufficientCreditsError struct {
	Required float64
	Balance  float64
	Plan     string
	Message  string
}

func (e *InsufficientCreditsError) Error() string {
	if e.Message != "" {
		return "insufficient credits: " + e.Message
	}
	return fmt.Sprintf("insufficient credits: %g required, %g available on plan %s", e.Required, e.Balance, e.Plan)
}

// insufficientCreditsCode is the error code carried by 402 payloads.
const insufficientCreditsCode = "insufficient_credits"

type creditsDetail struct {
	Error    string  `json:"error"`
	Code     string  `json:"code"`
	Required float64 `json:"required"`
	Balance  float64 `json:"balance"`
	Plan     string  `json:"plan"`
	Message  string  `json:"message"`
}

// decodeError maps an unsuccessful response to HTTPError or InsufficientCreditsError.
func decodeError(statusCode int, status string, body []byte) error {
	var envelope struct {
		Detail any `json:"detail"`
	}
	_ = sonic.Unmarshal(body, &envelope)

	detail := normalizeDetail(envelope.Detail)

	if statusCode == 402 {
		if credits, ok := parseCredits(detail); ok {
			return credits
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Detail:     detailText(detail),
		Body:       string(body),
	}
}

// normalizeDetail decodes a detail that was itself JSON-encoded into a string.
func normalizeDetail(detail any) any {
	s, ok := detail.(string)
	if !ok {
		return detail
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return s
	}
	var inner any
	if err := sonic.UnmarshalString(trimmed, &inner); err != nil {
		return s
	}
	return inner
}

func parseCredits(detail any) (*InsufficientCreditsError, bool) {
	obj, ok := detail.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, err := sonic.Marshal(obj)
	if err != nil {
		return nil, false
	}
	var d creditsDetail
	if err := sonic.Unmarshal(raw, &d); err != nil {
		return nil, false
	}
	if d.Error != insufficientCreditsCode && d.Code != insufficientCreditsCode {
		return nil, false
	}
	return &InsufficientCreditsError{
		Required: d.Required,
		Balance:  d.Balance,
		Plan:     d.Plan,
		Message:  d.Message,
	}, true
}

// detailText flattens the shapes FastAPI-style backends put in detail.
func detailText(detail any) string {
	switch v := detail.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"message", "detail", "error", "msg"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		raw, _ := sonic.MarshalString(v)
		return raw
	case []any:
		var msgs []string
		for _, item := range v {
			if s := detailText(item); s != "" {
				msgs = append(msgs, s)
			}
		}
		return strings.Join(msgs, "; ")
	default:
		return fmt.Sprint(v)
	}
}
