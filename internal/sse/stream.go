// Package sse decodes the backend's Server-Sent-Events responses into a
// sequence of typed events consumed with Next/Current.
//
// Every "data:" line carries one complete JSON object with a "type" field.
// Lines may be split across network reads; the reader keeps the incomplete
// tail until its newline arrives.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// ContentType is the media type of an event stream response.
const ContentType = "text/event-stream"

// ErrStreamError is wrapped by errors produced from an explicit "error" event.
var ErrStreamError = errors.New("stream reported error")

// ParseError reports a data line whose payload is not a JSON event.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:80] + "..."
	}
	return fmt.Sprintf("malformed stream event %q: %v", line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Event is one decoded data line.
type Event struct {
	Type string // Payload "type" field, or the SSE event name when the payload has none
	ID   string // Last "id:" field seen
	Data []byte // Raw JSON payload
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := sonic.Unmarshal(e.Data, v); err != nil {
		return &ParseError{Line: string(e.Data), Err: err}
	}
	return nil
}

// Stream reads events from a response body. It is a single sequential consumer
// and is not safe for concurrent use.
type Stream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	current   Event
	err       error
	done      bool
	eventName string
	lastID    string
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps body. The caller must Close the stream on every path.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReaderSize(body, 64*1024),
	}
}

// Next advances to the next event. It returns false at end of stream or on error;
// check Err afterwards.
func (s *Stream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			ev, ok, err := s.parseLine(line)
			if err != nil {
				s.err = err
				return false
			}
			if ok {
				s.current = ev
				return true
			}
			if s.done {
				return false
			}
		}

		if readErr != nil {
			s.done = true
			if !errors.Is(readErr, io.EOF) {
				s.err = fmt.Errorf("failed to read event stream: %w", readErr)
			}
			return false
		}
	}
}

// parseLine interprets one line. ok is true when the line produced an event.
func (s *Stream) parseLine(raw []byte) (Event, bool, error) {
	line := strings.TrimRight(string(raw), "\r\n")

	switch {
	case line == "", strings.HasPrefix(line, ":"):
		return Event{}, false, nil
	case strings.HasPrefix(line, "event:"):
		s.eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		return Event{}, false, nil
	case strings.HasPrefix(line, "id:"):
		s.lastID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		return Event{}, false, nil
	case !strings.HasPrefix(line, "data:"):
		// retry: and unknown fields carry nothing for us.
		return Event{}, false, nil
	}

	payload := strings.TrimPrefix(line, "data:")
	payload = strings.TrimPrefix(payload, " ")
	if payload == "[DONE]" {
		s.done = true
		return Event{}, false, nil
	}

	data := []byte(payload)
	var head struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(data, &head); err != nil {
		return Event{}, false, &ParseError{Line: payload, Err: err}
	}

	ev := Event{Type: head.Type, ID: s.lastID, Data: bytes.Clone(data)}
	if ev.Type == "" {
		ev.Type = s.eventName
	}
	s.eventName = ""
	return ev, true, nil
}

// Current returns the event produced by the last successful Next.
func (s *Stream) Current() Event {
	return s.current
}

// Err returns the first read or parse error.
func (s *Stream) Err() error {
	return s.err
}

// Fail records a consumer-side error, such as an explicit error event, and
// stops the stream. Err reports the first recorded error.
func (s *Stream) Fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.done = true
}

// Close releases the underlying connection. It is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}
