package services

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"autodash/internal/data/embedded"
	"autodash/internal/logger"
	"autodash/pkg/dashtypes"
)

// DefaultPalette is used when no color theme is configured.
const DefaultPalette = "default"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// PaletteService serves the chart colour palettes selectable as color_theme.
type PaletteService struct {
	initialized bool
	palettes    map[string]dashtypes.Palette
}

// NewPaletteService creates a palette service.
func NewPaletteService() *PaletteService {
	return &PaletteService{palettes: make(map[string]dashtypes.Palette)}
}

// Name returns the service name "palette" for registration.
func (p *PaletteService) Name() string {
	return "palette"
}

// Initialize loads the embedded palettes.
func (p *PaletteService) Initialize() error {
	files, err := embedded.Files(embedded.PaletteFS, "palettes")
	if err != nil {
		return err
	}
	for name, data := range files {
		var pal dashtypes.Palette
		if err := yaml.Unmarshal(data, &pal); err != nil {
			logger.Error("Failed to load palette", "palette", name, "error", err)
			continue
		}
		if pal.Name == "" {
			pal.Name = name
		}
		if err := ValidatePalette(pal.Colors); err != nil {
			logger.Error("Invalid palette", "palette", name, "error", err)
			continue
		}
		p.palettes[strings.ToLower(pal.Name)] = pal
	}
	if _, ok := p.palettes[DefaultPalette]; !ok {
		return fmt.Errorf("embedded palette %q is missing", DefaultPalette)
	}
	p.initialized = true
	return nil
}

// Names returns the sorted palette names.
func (p *PaletteService) Names() []string {
	names := make(map[string][]byte, len(p.palettes))
	for n := range p.palettes {
		names[n] = nil
	}
	return embedded.Names(names)
}

// Get returns a palette by case-insensitive name.
func (p *PaletteService) Get(name string) (dashtypes.Palette, error) {
	if !p.initialized {
		return dashtypes.Palette{}, fmt.Errorf("palette service not initialized")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultPalette
	}
	pal, ok := p.palettes[key]
	if !ok {
		return dashtypes.Palette{}, fmt.Errorf("unknown palette %q (available: %s)", name, strings.Join(p.Names(), ", "))
	}
	return pal, nil
}

// Custom builds an ad-hoc palette from hex colours.
func (p *PaletteService) Custom(name string, colors []string) (dashtypes.Palette, error) {
	if err := ValidatePalette(colors); err != nil {
		return dashtypes.Palette{}, err
	}
	if name == "" {
		name = "custom"
	}
	return dashtypes.Palette{Name: name, Colors: colors}, nil
}

// ValidatePalette checks that colors is a non-empty list of hex colours.
func ValidatePalette(colors []string) error {
	if len(colors) == 0 {
		return fmt.Errorf("palette has no colors")
	}
	for _, c := range colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("invalid color %q: expected #rgb or #rrggbb", c)
		}
	}
	return nil
}

func init() {
	if err := GlobalRegistry.RegisterService(NewPaletteService()); err != nil {
		panic(fmt.Sprintf("failed to register palette service: %v", err))
	}
}
