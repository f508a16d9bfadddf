package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"autodash/internal/logger"
)

// EditorService opens an external editor on a temporary file, used to edit
// chart notes from the terminal.
type EditorService struct {
	initialized bool
	tempDir     string
	command     string
}

// NewEditorService creates a new EditorService instance.
func NewEditorService() *EditorService {
	return &EditorService{}
}

// Name returns the service name "editor" for registration.
func (e *EditorService) Name() string {
	return "editor"
}

// Initialize creates the temporary directory edited files live in.
func (e *EditorService) Initialize() error {
	if e.tempDir != "" {
		e.initialized = true
		return nil
	}
	tempDir, err := os.MkdirTemp("", "autodash-editor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	e.tempDir = tempDir
	e.initialized = true
	logger.Debug("EditorService initialized", "tempDir", tempDir)
	return nil
}

// SetCommand overrides editor discovery. The command may carry arguments,
// e.g. "code --wait".
func (e *EditorService) SetCommand(command string) {
	e.command = strings.TrimSpace(command)
}

// Command returns the editor that Edit would run, or "" when none is found.
func (e *EditorService) Command() string {
	if e.command != "" {
		return e.command
	}
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if editor := strings.TrimSpace(os.Getenv(env)); editor != "" {
			return editor
		}
	}
	for _, editor := range []string{"nvim", "vim", "nano", "vi"} {
		if _, err := exec.LookPath(editor); err == nil {
			return editor
		}
	}
	return ""
}

// Edit writes initial to a temporary file named after name, waits for the
// editor to exit and returns the saved content with trailing whitespace
// removed.
func (e *EditorService) Edit(ctx context.Context, name, initial string) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("editor service not initialized")
	}
	editorCmd := e.Command()
	if editorCmd == "" {
		return "", fmt.Errorf("no editor configured or found; set $EDITOR")
	}

	f, err := os.CreateTemp(e.tempDir, name+"-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			logger.Error("Failed to remove temp file", "error", err, "file", path)
		}
	}()
	if _, err := f.WriteString(initial); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write initial content: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	logger.Debug("Opening editor", "editor", editorCmd, "file", path, "contentLength", len(initial))
	parts := strings.Fields(editorCmd)
	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor command failed: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read editor content: %w", err)
	}
	return strings.TrimRight(string(content), " \t\r\n"), nil
}

// Cleanup removes the temporary directory.
func (e *EditorService) Cleanup() error {
	if e.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(e.tempDir); err != nil {
		logger.Error("Failed to cleanup editor temp directory", "error", err, "tempDir", e.tempDir)
		return err
	}
	e.tempDir = ""
	e.initialized = false
	return nil
}

func init() {
	if err := GlobalRegistry.RegisterService(NewEditorService()); err != nil {
		panic(err)
	}
}
