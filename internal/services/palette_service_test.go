package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteService_Initialize(t *testing.T) {
	service := NewPaletteService()
	assert.Equal(t, "palette", service.Name())

	_, err := service.Get("default")
	assert.ErrorContains(t, err, "not initialized")

	require.NoError(t, service.Initialize())
	assert.Equal(t, []string{"default", "forest", "monochrome", "ocean", "sunset"}, service.Names())
}

func TestPaletteService_Get(t *testing.T) {
	service := NewPaletteService()
	require.NoError(t, service.Initialize())

	pal, err := service.Get("")
	require.NoError(t, err)
	assert.Equal(t, "default", pal.Name)
	assert.Equal(t, "#636efa", pal.Colors[0])

	pal, err = service.Get(" Ocean ")
	require.NoError(t, err)
	assert.Equal(t, "ocean", pal.Name)
	assert.NotEmpty(t, pal.Colors)

	_, err = service.Get("rainbow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown palette "rainbow"`)
	assert.Contains(t, err.Error(), "sunset")
}

func TestPaletteService_Custom(t *testing.T) {
	service := NewPaletteService()

	pal, err := service.Custom("", []string{"#fff", "#123456"})
	require.NoError(t, err)
	assert.Equal(t, "custom", pal.Name)
	assert.Equal(t, []string{"#fff", "#123456"}, pal.Colors)

	_, err = service.Custom("brand", []string{"#fff", "red"})
	assert.ErrorContains(t, err, `invalid color "red"`)
}

func TestValidatePalette(t *testing.T) {
	tests := []struct {
		name    string
		colors  []string
		wantErr bool
	}{
		{name: "short hex", colors: []string{"#abc"}},
		{name: "long hex", colors: []string{"#AABBCC", "#001122"}},
		{name: "empty", colors: nil, wantErr: true},
		{name: "missing hash", colors: []string{"aabbcc"}, wantErr: true},
		{name: "bad length", colors: []string{"#abcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePalette(tt.colors)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
