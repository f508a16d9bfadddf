package render

import (
	"fmt"
	"regexp"
	"strings"
)

// maxErrorLength bounds an unrecognised message shown to the user.
const maxErrorLength = 150

// Error is a chart that could not be rendered. Message is safe to show a user;
// Raw keeps the original text for logs.
type Error struct {
	ChartID string
	Raw     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// newError wraps a raw failure with its sanitized message.
func newError(chartID, raw string) *Error {
	return &Error{ChartID: chartID, Raw: raw, Message: Sanitize(raw)}
}

// errorf builds a render failure from a format string.
func errorf(format string, args ...any) *Error {
	return newError("", fmt.Sprintf(format, args...))
}

var (
	didYouMeanPattern      = regexp.MustCompile(`Did you mean "([^"]+)"\?`)
	invalidPropertyPattern = regexp.MustCompile(`Invalid property specified for object of type [^:]+:\s*'([^']+)'`)
	badPathPattern         = regexp.MustCompile(`Bad property path:\s*(\S+)`)
)

// Sanitize rewrites known plotting-library messages into short user-facing text.
// Anything unrecognised is truncated to 150 characters.
func Sanitize(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "Chart failed to render"
	}

	if m := didYouMeanPattern.FindStringSubmatch(msg); m != nil {
		return fmt.Sprintf("Unknown property, did you mean %q?", m[1])
	}
	if m := invalidPropertyPattern.FindStringSubmatch(msg); m != nil {
		return fmt.Sprintf("Invalid chart property %q", m[1])
	}
	if m := badPathPattern.FindStringSubmatch(msg); m != nil {
		return fmt.Sprintf("Invalid property path %q", strings.Trim(m[1], `"'`))
	}

	runes := []rune(msg)
	if len(runes) > maxErrorLength {
		return string(runes[:maxErrorLength-3]) + "..."
	}
	return msg
}
