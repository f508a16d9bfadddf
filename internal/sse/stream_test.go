package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func newBody(s string) *trackingBody {
	return &trackingBody{Reader: strings.NewReader(s)}
}

func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	for s.Next() {
		events = append(events, s.Current())
	}
	return events
}

func TestStream_TypedEvents(t *testing.T) {
	body := newBody(strings.Join([]string{
		`data: {"type":"progress","message":"Analyzing"}`,
		``,
		`data: {"type":"dashboard_info","kpi_count":1,"chart_count":2}`,
		``,
		`data: {"type":"complete","total_charts":2}`,
		``,
	}, "\n"))

	s := NewStream(body)
	defer s.Close()

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 3)
	assert.Equal(t, "progress", events[0].Type)
	assert.Equal(t, "dashboard_info", events[1].Type)
	assert.Equal(t, "complete", events[2].Type)

	var info struct {
		KPICount   int `json:"kpi_count"`
		ChartCount int `json:"chart_count"`
	}
	require.NoError(t, events[1].Decode(&info))
	assert.Equal(t, 1, info.KPICount)
	assert.Equal(t, 2, info.ChartCount)
}

func TestStream_LinesSplitAcrossReads(t *testing.T) {
	raw := "data: {\"type\":\"chart\",\"chart\":{\"title\":\"A\"}}\ndata: {\"type\":\"chart\",\"chart\":{\"title\":\"B\"}}\n"
	body := &trackingBody{Reader: iotest.OneByteReader(strings.NewReader(raw))}

	s := NewStream(body)
	defer s.Close()

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 2, "consecutive data lines are separate events")
	assert.Contains(t, string(events[0].Data), `"A"`)
	assert.Contains(t, string(events[1].Data), `"B"`)
}

func TestStream_FinalLineWithoutNewline(t *testing.T) {
	s := NewStream(newBody(`data: {"type":"complete"}`))
	defer s.Close()

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 1)
	assert.Equal(t, "complete", events[0].Type)
}

func TestStream_CRLFCommentsAndFields(t *testing.T) {
	raw := ": keepalive\r\nretry: 1000\r\nid: 7\r\nevent: chart\r\ndata: {\"title\":\"no type\"}\r\n\r\ndata: [DONE]\r\ndata: {\"type\":\"chart\"}\r\n"
	s := NewStream(newBody(raw))
	defer s.Close()

	events := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, events, 1, "[DONE] ends the stream")
	assert.Equal(t, "chart", events[0].Type, "event name used when payload has no type")
	assert.Equal(t, "7", events[0].ID)
}

func TestStream_ParseError(t *testing.T) {
	s := NewStream(newBody("data: {\"type\":\"progress\"}\ndata: {not json\ndata: {\"type\":\"chart\"}\n"))
	defer s.Close()

	events := collect(t, s)
	require.Len(t, events, 1)

	var perr *ParseError
	require.ErrorAs(t, s.Err(), &perr)
	assert.Equal(t, "{not json", perr.Line)
	assert.False(t, s.Next(), "stream stays stopped after an error")
}

func TestStream_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	body := &trackingBody{Reader: io.MultiReader(strings.NewReader("data: {\"type\":\"progress\"}\n"), iotest.ErrReader(boom))}

	s := NewStream(body)
	defer s.Close()

	events := collect(t, s)
	require.Len(t, events, 1)
	assert.ErrorIs(t, s.Err(), boom)
}

func TestStream_FailStopsAndKeepsFirstError(t *testing.T) {
	s := NewStream(newBody("data: {\"type\":\"error\",\"error\":\"quota\"}\ndata: {\"type\":\"chart\"}\n"))
	defer s.Close()

	require.True(t, s.Next())
	first := errors.New("first")
	s.Fail(first)
	s.Fail(errors.New("second"))

	assert.False(t, s.Next())
	assert.Equal(t, first, s.Err())
}

func TestStream_CloseIdempotent(t *testing.T) {
	body := newBody("data: {\"type\":\"progress\"}\n")
	s := NewStream(body)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, body.closed)
	assert.False(t, s.Next())
}

func TestParseError_TruncatesLongLines(t *testing.T) {
	err := &ParseError{Line: strings.Repeat("x", 200), Err: errors.New("bad")}
	assert.Less(t, len(err.Error()), 150)
	assert.Contains(t, err.Error(), "...")
}
