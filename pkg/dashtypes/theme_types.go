// Package dashtypes defines theme and palette data loaded from embedded YAML.
// This file contains the terminal display theme schema and the chart colour palette schema.
package dashtypes

// ThemeConfig is a terminal display theme loaded from YAML.
type ThemeConfig struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Styles      ThemeStyles `yaml:"styles" json:"styles"`
}

// ThemeStyles holds one style per transcript and dashboard element.
type ThemeStyles struct {
	User      StyleConfig `yaml:"user" json:"user"`           // User messages
	Assistant StyleConfig `yaml:"assistant" json:"assistant"` // Assistant replies
	Error     StyleConfig `yaml:"error" json:"error"`         // Failed messages and banners
	Info      StyleConfig `yaml:"info" json:"info"`           // Progress and info banners
	Success   StyleConfig `yaml:"success" json:"success"`
	Muted     StyleConfig `yaml:"muted" json:"muted"` // Timestamps, indices, hints
	Title     StyleConfig `yaml:"title" json:"title"` // Dashboard and chart titles
	Code      StyleConfig `yaml:"code" json:"code"`
	List      StyleConfig `yaml:"list" json:"list"`
}

// StyleConfig is the styling of one element. Colours are a string or a
// {light, dark} adaptive pair.
type StyleConfig struct {
	Foreground    interface{} `yaml:"foreground,omitempty" json:"foreground,omitempty"`
	Background    interface{} `yaml:"background,omitempty" json:"background,omitempty"`
	Bold          *bool       `yaml:"bold,omitempty" json:"bold,omitempty"`
	Italic        *bool       `yaml:"italic,omitempty" json:"italic,omitempty"`
	Underline     *bool       `yaml:"underline,omitempty" json:"underline,omitempty"`
	Strikethrough *bool       `yaml:"strikethrough,omitempty" json:"strikethrough,omitempty"`
}

// ThemeFile is the top level of a theme YAML file.
type ThemeFile struct {
	ThemeConfig `yaml:",inline" json:",inline"`
}

// Palette is a named list of chart colours sent as color_theme.
type Palette struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Colors      []string `yaml:"colors" json:"colors"`
}
