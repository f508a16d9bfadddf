package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEditor(t *testing.T) *EditorService {
	t.Helper()
	e := NewEditorService()
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Cleanup() })
	return e
}

// writeScript creates an executable shell script acting as an editor.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script editors are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "editor.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestEditorService_Name(t *testing.T) {
	assert.Equal(t, "editor", NewEditorService().Name())
}

func TestEditorService_CommandPrecedence(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano -w")

	e := NewEditorService()
	assert.Equal(t, "nano -w", e.Command())

	t.Setenv("VISUAL", "code --wait")
	assert.Equal(t, "code --wait", e.Command())

	e.SetCommand("  hx ")
	assert.Equal(t, "hx", e.Command())
}

func TestEditorService_EditReturnsSavedContent(t *testing.T) {
	e := newTestEditor(t)
	e.SetCommand(writeScript(t, `printf 'Revenue peaked in Q3.\n\n' >> "$1"`))

	text, err := e.Edit(context.Background(), "chart_1", "Initial notes\n")
	require.NoError(t, err)
	assert.Equal(t, "Initial notes\nRevenue peaked in Q3.", text)
}

func TestEditorService_EditorFailure(t *testing.T) {
	e := newTestEditor(t)
	e.SetCommand(writeScript(t, "exit 3"))

	_, err := e.Edit(context.Background(), "chart_1", "")
	assert.ErrorContains(t, err, "editor command failed")
}

func TestEditorService_RemovesTempFiles(t *testing.T) {
	e := newTestEditor(t)
	e.SetCommand(writeScript(t, "true"))

	_, err := e.Edit(context.Background(), "chart_1", "x")
	require.NoError(t, err)

	entries, err := os.ReadDir(e.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEditorService_NotInitialized(t *testing.T) {
	_, err := NewEditorService().Edit(context.Background(), "chart_1", "")
	assert.ErrorContains(t, err, "not initialized")
}
