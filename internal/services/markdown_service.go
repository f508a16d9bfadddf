package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"autodash/internal/logger"
)

// MarkdownService renders assistant replies, notes and insights with Glamour.
type MarkdownService struct {
	initialized bool
	wordWrap    int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a new MarkdownService instance.
func NewMarkdownService() *MarkdownService {
	return &MarkdownService{wordWrap: 80}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize sets up the MarkdownService with default configuration.
func (m *MarkdownService) Initialize() error {
	renderer, err := m.newRenderer(m.styleFor(""))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	m.renderer = renderer
	m.initialized = true

	logger.Debug("MarkdownService initialized successfully")
	return nil
}

func (m *MarkdownService) newRenderer(style string) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(m.wordWrap),
	)
}

// styleFor maps a display theme to a Glamour style. Output without colour
// support always uses notty.
func (m *MarkdownService) styleFor(theme string) string {
	if lipgloss.ColorProfile() == termenv.Ascii {
		return "notty"
	}
	switch strings.ToLower(theme) {
	case "dark":
		return "dark"
	case "light":
		return "light"
	case "plain":
		return "notty"
	default:
		if lipgloss.HasDarkBackground() {
			return "dark"
		}
		return "light"
	}
}

// Render renders markdown content to terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return rendered, nil
}

// RenderWithTheme renders markdown with the Glamour style matching a display theme.
func (m *MarkdownService) RenderWithTheme(markdown, theme string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	renderer, err := m.newRenderer(m.styleFor(theme))
	if err != nil {
		logger.Debug("Failed to create themed renderer, falling back to default", "theme", theme, "error", err)
		return m.Render(markdown)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown with theme '%s': %w", theme, err)
	}
	return rendered, nil
}

// RenderOrPlain renders markdown and falls back to the raw text on failure.
func (m *MarkdownService) RenderOrPlain(markdown, theme string) string {
	out, err := m.RenderWithTheme(markdown, theme)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

// SetWordWrap sets the word wrap width for markdown rendering.
func (m *MarkdownService) SetWordWrap(width int) error {
	if !m.initialized {
		return fmt.Errorf("markdown service not initialized")
	}

	if width <= 0 {
		return fmt.Errorf("word wrap width must be positive, got %d", width)
	}

	m.wordWrap = width
	renderer, err := m.newRenderer(m.styleFor(""))
	if err != nil {
		return fmt.Errorf("failed to create renderer with word wrap %d: %w", width, err)
	}

	m.renderer = renderer
	logger.Debug("MarkdownService word wrap updated", "width", width)
	return nil
}

func init() {
	if err := GlobalRegistry.RegisterService(NewMarkdownService()); err != nil {
		panic(fmt.Sprintf("failed to register markdown service: %v", err))
	}
}
