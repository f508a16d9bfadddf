package services

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// containsText checks for text after stripping ANSI escape sequences.
func containsText(rendered, text string) bool {
	return strings.Contains(ansiPattern.ReplaceAllString(rendered, ""), text)
}

func TestMarkdownService_Name(t *testing.T) {
	service := NewMarkdownService()
	assert.Equal(t, "markdown", service.Name())
}

func TestMarkdownService_Initialize(t *testing.T) {
	service := NewMarkdownService()
	assert.False(t, service.initialized)

	err := service.Initialize()
	assert.NoError(t, err)
	assert.True(t, service.initialized)
	assert.NotNil(t, service.renderer)
}

func TestMarkdownService_Render(t *testing.T) {
	service := NewMarkdownService()

	_, err := service.Render("# Test")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	require.NoError(t, service.Initialize())

	_, err = service.Render("   ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	result, err := service.Render("# Revenue by region\n\nNorth leads with **42%**.")
	assert.NoError(t, err)
	assert.True(t, containsText(result, "Revenue by region"))
	assert.True(t, containsText(result, "42%"))
}

func TestMarkdownService_RenderWithTheme(t *testing.T) {
	service := NewMarkdownService()
	_, err := service.RenderWithTheme("text", "dark")
	assert.Error(t, err)

	require.NoError(t, service.Initialize())
	for _, theme := range []string{"dark", "light", "plain", "default", "unknown"} {
		t.Run(theme, func(t *testing.T) {
			out, err := service.RenderWithTheme("- first insight\n- second insight", theme)
			require.NoError(t, err)
			assert.True(t, containsText(out, "first insight"))
			assert.True(t, containsText(out, "second insight"))
		})
	}
}

func TestMarkdownService_RenderOrPlain(t *testing.T) {
	service := NewMarkdownService()
	// Uninitialized service falls back to the raw text
	assert.Equal(t, "**raw**", service.RenderOrPlain("**raw**", "dark"))

	require.NoError(t, service.Initialize())
	out := service.RenderOrPlain("**bold**", "plain")
	assert.True(t, containsText(out, "bold"))
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestMarkdownService_SetWordWrap(t *testing.T) {
	service := NewMarkdownService()
	assert.Error(t, service.SetWordWrap(40))

	require.NoError(t, service.Initialize())
	assert.Error(t, service.SetWordWrap(0))
	assert.NoError(t, service.SetWordWrap(40))
	assert.Equal(t, 40, service.wordWrap)
}

func TestMarkdownService_StyleFor(t *testing.T) {
	service := NewMarkdownService()
	style := service.styleFor("plain")
	assert.Equal(t, "notty", style)
	for _, theme := range []string{"dark", "light", "default"} {
		assert.Contains(t, []string{"dark", "light", "notty"}, service.styleFor(theme))
	}
}
