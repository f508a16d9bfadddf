package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestConfigure_FlagBeatsEnv(t *testing.T) {
	t.Setenv("AUTODASH_LOG_LEVEL", "error")

	require.NoError(t, Configure("debug", "", false))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", "", false))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_TestModeForcesInfo(t *testing.T) {
	require.NoError(t, Configure("debug", "", true))
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autodash.log")

	require.NoError(t, Configure("info", path, false))
	Info("written to file", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), "key=value")
}

func TestSetOutput(t *testing.T) {
	require.NoError(t, Configure("debug", "", false))

	var buf bytes.Buffer
	SetOutput(&buf)
	Request("GET", "http://example.test/api", 200)

	assert.Contains(t, buf.String(), "Backend request")
	assert.Contains(t, buf.String(), "status_code=200")
}

func TestNewStyledLogger(t *testing.T) {
	l := NewStyledLogger("Stream")
	assert.NotNil(t, l)
	assert.Contains(t, l.GetPrefix(), "Stream")
}
