package services

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodash/pkg/dashtypes"
)

func TestThemeService_Name(t *testing.T) {
	assert.Equal(t, "theme", NewThemeService().Name())
}

func TestThemeService_AvailableThemes(t *testing.T) {
	service := NewThemeService()
	assert.Empty(t, service.GetAvailableThemes())

	require.NoError(t, service.Initialize())
	assert.Equal(t, []string{"dark", "default", "light", "plain"}, service.GetAvailableThemes())
}

func TestThemeService_GetThemeByName(t *testing.T) {
	service := NewThemeService()
	require.NoError(t, service.Initialize())

	tests := []struct {
		input string
		want  string
	}{
		{input: "dark", want: "dark"},
		{input: "  LIGHT ", want: "light"},
		{input: "", want: "default"},
		{input: "neon", want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			theme := service.GetThemeByName(tt.input)
			require.NotNil(t, theme)
			assert.Equal(t, tt.want, theme.Name)
		})
	}
}

func TestThemeService_Uninitialized(t *testing.T) {
	theme := NewThemeService().GetThemeByName("dark")
	require.NotNil(t, theme)
	assert.Equal(t, "plain", theme.Name)
}

func TestThemeService_DarkStyles(t *testing.T) {
	service := NewThemeService()
	require.NoError(t, service.Initialize())
	theme := service.GetThemeByName("dark")

	assert.Equal(t, lipgloss.Color("#60a5fa"), theme.User.GetForeground())
	assert.True(t, theme.User.GetBold())
	assert.True(t, theme.Title.GetUnderline())
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, lipgloss.Color("#fff"), parseColor("#fff"))
	assert.Equal(t, lipgloss.AdaptiveColor{Light: "#000", Dark: "#fff"},
		parseColor(map[string]interface{}{"light": "#000", "dark": "#fff"}))
	assert.Nil(t, parseColor(map[string]interface{}{"light": "#000"}))
	assert.Nil(t, parseColor(42))
}

func TestCreateStyle(t *testing.T) {
	yes := true
	style := createStyle(dashtypes.StyleConfig{Foreground: "#abcdef", Italic: &yes, Strikethrough: &yes})
	assert.Equal(t, lipgloss.Color("#abcdef"), style.GetForeground())
	assert.True(t, style.GetItalic())
	assert.True(t, style.GetStrikethrough())
	assert.False(t, style.GetBold())
}

func TestTheme_MessageStyle(t *testing.T) {
	service := NewThemeService()
	require.NoError(t, service.Initialize())
	theme := service.GetThemeByName("dark")

	assert.Equal(t, theme.User.GetForeground(), theme.MessageStyle(dashtypes.MessageUser).GetForeground())
	assert.Equal(t, theme.Error.GetForeground(), theme.MessageStyle(dashtypes.MessageError).GetForeground())
	assert.Equal(t, theme.Assistant.GetForeground(), theme.MessageStyle(dashtypes.MessageAssistant).GetForeground())
}

func TestTheme_CreateSimpleList(t *testing.T) {
	theme := plainTheme("plain")
	out := theme.CreateSimpleList([]string{"Revenue", "Orders"}).String()
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "Orders")
}
