// Package embedded provides access to embedded theme and palette files.
package embedded

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ThemeFS contains the terminal display themes.
//
//go:embed themes/*.yaml
var ThemeFS embed.FS

// PaletteFS contains the chart colour palettes.
//
//go:embed palettes/*.yaml
var PaletteFS embed.FS

// Files returns the YAML files of dir in fsys keyed by base name without extension.
func Files(fsys fs.FS, dir string) (map[string][]byte, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded %s: %w", dir, err)
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".yaml")] = data
	}
	return out, nil
}

// Names returns the sorted keys of files.
func Names(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
