package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/muesli/termenv"

	"autodash/pkg/dashtypes"
)

// PromptColorService turns colour markup in the shell prompt into ANSI
// sequences. {{color:info}}text{{/color}} takes a theme style or a direct
// colour; {{bold}}text{{/bold}} applies a text style.
type PromptColorService struct {
	initialized bool
	theme       *Theme
	colorRegex  *regexp.Regexp
	styleRegex  *regexp.Regexp
}

// NewPromptColorService creates a new PromptColorService instance.
func NewPromptColorService() *PromptColorService {
	return &PromptColorService{
		colorRegex: regexp.MustCompile(`\{\{color:([^}]+)\}\}(.*?)\{\{/color\}\}`),
		styleRegex: regexp.MustCompile(`\{\{(bold|italic|underline)\}\}(.*?)\{\{/(bold|italic|underline)\}\}`),
	}
}

// Name returns the service name "prompt_color" for registration.
func (p *PromptColorService) Name() string {
	return "prompt_color"
}

// Initialize sets up the service.
func (p *PromptColorService) Initialize() error {
	p.initialized = true
	return nil
}

// SetTheme selects the theme used for semantic colour names.
func (p *PromptColorService) SetTheme(theme *Theme) {
	p.theme = theme
}

// IsColorSupported returns true if the terminal supports colors.
func (p *PromptColorService) IsColorSupported() bool {
	return lipgloss.ColorProfile() != termenv.Ascii
}

// ProcessColorMarkup renders markup, or strips it when colour is unavailable.
func (p *PromptColorService) ProcessColorMarkup(input string) string {
	if !p.initialized {
		return input
	}
	if !p.IsColorSupported() {
		return p.StripMarkup(input)
	}

	result := p.colorRegex.ReplaceAllStringFunc(input, func(match string) string {
		m := p.colorRegex.FindStringSubmatch(match)
		return p.colorStyle(m[1]).Render(m[2])
	})
	return p.styleRegex.ReplaceAllStringFunc(result, func(match string) string {
		m := p.styleRegex.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		return textStyle(m[1]).Render(m[2])
	})
}

// StripMarkup removes markup and keeps the text.
func (p *PromptColorService) StripMarkup(input string) string {
	result := p.colorRegex.ReplaceAllString(input, "$2")
	return p.styleRegex.ReplaceAllStringFunc(result, func(match string) string {
		m := p.styleRegex.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		return m[2]
	})
}

func (p *PromptColorService) colorStyle(spec string) lipgloss.Style {
	if p.theme != nil {
		switch spec {
		case "info":
			return p.theme.Info
		case "success":
			return p.theme.Success
		case "error":
			return p.theme.Error
		case "muted":
			return p.theme.Muted
		case "title":
			return p.theme.Title
		case "code":
			return p.theme.Code
		case "user":
			return p.theme.User
		}
	}
	return directColorStyle(spec)
}

var namedColors = map[string]string{
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"purple":  "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
}

func directColorStyle(spec string) lipgloss.Style {
	style := lipgloss.NewStyle()
	if strings.HasPrefix(spec, "#") {
		return style.Foreground(lipgloss.Color(spec))
	}
	if code, ok := namedColors[strings.ToLower(spec)]; ok {
		return style.Foreground(lipgloss.Color(code))
	}
	return style.Foreground(lipgloss.Color(spec))
}

func textStyle(kind string) lipgloss.Style {
	switch kind {
	case "bold":
		return lipgloss.NewStyle().Bold(true)
	case "italic":
		return lipgloss.NewStyle().Italic(true)
	case "underline":
		return lipgloss.NewStyle().Underline(true)
	}
	return lipgloss.NewStyle()
}

// CommandHighlighter implements readline.Painter. It colours the first word of
// the line when it names a shell command.
type CommandHighlighter struct {
	colorService *PromptColorService
	commands     func() []string
}

// CreateCommandHighlighter returns a painter that recognises the given commands.
func (p *PromptColorService) CreateCommandHighlighter(commands func() []string) readline.Painter {
	return &CommandHighlighter{colorService: p, commands: commands}
}

// Paint implements readline.Painter.
func (h *CommandHighlighter) Paint(line []rune, _ int) []rune {
	if !h.colorService.IsColorSupported() || h.commands == nil {
		return line
	}
	input := string(line)
	word, rest, _ := strings.Cut(input, " ")
	if word == "" || !h.known(word) {
		return line
	}

	const (
		ansiBrightBlue = "\033[94m"
		ansiReset      = "\033[0m"
	)
	out := ansiBrightBlue + word + ansiReset
	if len(input) > len(word) {
		out += " " + rest
	}
	return []rune(out)
}

func (h *CommandHighlighter) known(word string) bool {
	for _, c := range h.commands() {
		if c == word {
			return true
		}
	}
	return false
}

var _ dashtypes.Service = (*PromptColorService)(nil)

func init() {
	if err := GlobalRegistry.RegisterService(NewPromptColorService()); err != nil {
		panic(fmt.Sprintf("failed to register prompt color service: %v", err))
	}
}
