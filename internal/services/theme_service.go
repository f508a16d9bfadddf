package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"gopkg.in/yaml.v3"

	"autodash/internal/data/embedded"
	"autodash/internal/logger"
	"autodash/pkg/dashtypes"
)

// ThemeService provides the terminal display themes used for transcripts,
// banners and dashboard listings.
type ThemeService struct {
	initialized bool
	themes      map[string]*Theme
}

// Theme is a set of lipgloss styles for one display theme.
type Theme struct {
	Name      string
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Title     lipgloss.Style
	Code      lipgloss.Style
	List      lipgloss.Style
}

// NewThemeService creates a new ThemeService instance with themes loaded from YAML.
func NewThemeService() *ThemeService {
	service := &ThemeService{
		themes: make(map[string]*Theme),
	}
	service.loadThemesFromYAML()
	return service
}

// Name returns the service name "theme" for registration.
func (t *ThemeService) Name() string {
	return "theme"
}

// Initialize sets up the ThemeService for operation.
func (t *ThemeService) Initialize() error {
	t.initialized = true
	return nil
}

func (t *ThemeService) loadThemesFromYAML() {
	files, err := embedded.Files(embedded.ThemeFS, "themes")
	if err != nil {
		logger.Error("Failed to read embedded themes", "error", err)
	}

	for themeName, themeData := range files {
		theme, err := t.loadThemeFile(themeData)
		if err != nil {
			logger.Error("Failed to load theme", "theme", themeName, "error", err)
			t.themes[themeName] = plainTheme(themeName)
			continue
		}
		t.themes[themeName] = theme
	}

	// Ensure we always have a plain theme as fallback
	if _, exists := t.themes["plain"]; !exists {
		t.themes["plain"] = plainTheme("plain")
	}
}

func (t *ThemeService) loadThemeFile(data []byte) (*Theme, error) {
	var themeFile dashtypes.ThemeFile
	if err := yaml.Unmarshal(data, &themeFile); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	cfg := themeFile.ThemeConfig
	s := cfg.Styles
	return &Theme{
		Name:      cfg.Name,
		User:      createStyle(s.User),
		Assistant: createStyle(s.Assistant),
		Error:     createStyle(s.Error),
		Info:      createStyle(s.Info),
		Success:   createStyle(s.Success),
		Muted:     createStyle(s.Muted),
		Title:     createStyle(s.Title),
		Code:      createStyle(s.Code),
		List:      createStyle(s.List),
	}, nil
}

func createStyle(config dashtypes.StyleConfig) lipgloss.Style {
	style := lipgloss.NewStyle()

	if config.Foreground != nil {
		if color := parseColor(config.Foreground); color != nil {
			style = style.Foreground(color)
		}
	}
	if config.Background != nil {
		if color := parseColor(config.Background); color != nil {
			style = style.Background(color)
		}
	}

	if config.Bold != nil && *config.Bold {
		style = style.Bold(true)
	}
	if config.Italic != nil && *config.Italic {
		style = style.Italic(true)
	}
	if config.Underline != nil && *config.Underline {
		style = style.Underline(true)
	}
	if config.Strikethrough != nil && *config.Strikethrough {
		style = style.Strikethrough(true)
	}

	return style
}

// parseColor parses a color value that can be a string or a {light, dark} map.
func parseColor(colorValue interface{}) lipgloss.TerminalColor {
	switch v := colorValue.(type) {
	case string:
		return lipgloss.Color(v)
	case map[string]interface{}:
		if light, hasLight := v["light"].(string); hasLight {
			if dark, hasDark := v["dark"].(string); hasDark {
				return lipgloss.AdaptiveColor{Light: light, Dark: dark}
			}
		}
		return nil
	default:
		return nil
	}
}

func plainTheme(name string) *Theme {
	return &Theme{
		Name:      name,
		User:      lipgloss.NewStyle(),
		Assistant: lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
		Info:      lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Muted:     lipgloss.NewStyle(),
		Title:     lipgloss.NewStyle(),
		Code:      lipgloss.NewStyle(),
		List:      lipgloss.NewStyle(),
	}
}

// GetAvailableThemes returns the sorted theme names.
func (t *ThemeService) GetAvailableThemes() []string {
	if !t.initialized {
		return []string{}
	}
	names := make(map[string][]byte, len(t.themes))
	for name := range t.themes {
		names[name] = nil
	}
	return embedded.Names(names)
}

// GetThemeByName returns a theme by case-insensitive name. Unknown names fall
// back to the plain theme; it never returns nil.
func (t *ThemeService) GetThemeByName(theme string) *Theme {
	if !t.initialized {
		return plainTheme("plain")
	}

	normalized := strings.ToLower(strings.TrimSpace(theme))
	if normalized == "" {
		normalized = "default"
	}
	if themeObj, exists := t.themes[normalized]; exists {
		return themeObj
	}
	logger.Debug("Invalid theme requested, using plain theme", "theme", theme, "available", t.GetAvailableThemes())
	return t.themes["plain"]
}

// MessageStyle returns the style for a transcript entry kind.
func (th *Theme) MessageStyle(kind dashtypes.MessageType) lipgloss.Style {
	switch kind {
	case dashtypes.MessageUser:
		return th.User
	case dashtypes.MessageError:
		return th.Error
	default:
		return th.Assistant
	}
}

// CreateSimpleList creates a list from string array with theme styling applied.
func (th *Theme) CreateSimpleList(items []string) *list.List {
	l := list.New().EnumeratorStyle(th.List)
	for _, item := range items {
		l.Item(item)
	}
	return l
}

func init() {
	if err := GlobalRegistry.RegisterService(NewThemeService()); err != nil {
		panic(fmt.Sprintf("failed to register theme service: %v", err))
	}
}
