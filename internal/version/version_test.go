package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, v, commit, date string) {
	origV, origC, origD := Version, GitCommit, BuildDate
	t.Cleanup(func() { SetBuildInfo(origV, origC, origD) })
	SetBuildInfo(v, commit, date)
}

func TestGetFormattedVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		commit   string
		date     string
		expected string
	}{
		{"development build", "0.4.0", "unknown", "unknown", "AutoDash v0.4.0"},
		{"with commit", "0.4.1", "abcdef1234567", "unknown", "AutoDash v0.4.1, commit abcdef1"},
		{"with commit and date", "1.0.0", "abc", "2026-01-02", "AutoDash v1.0.0, commit abc, built 2026-01-02"},
		{"invalid version", "not-a-version", "unknown", "unknown", "AutoDash vnot-a-version (invalid version)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuildInfo(t, tt.version, tt.commit, tt.date)
			assert.Equal(t, tt.expected, GetFormattedVersion())
		})
	}
}

func TestGetDetailedVersion(t *testing.T) {
	withBuildInfo(t, "0.4.0", "deadbeef", "2026-03-01")

	out := GetDetailedVersion()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "AutoDash v0.4.0", lines[0])
	assert.Contains(t, out, "Git Commit: deadbeef")
	assert.Contains(t, out, "Build Date: 2026-03-01")
}

func TestValidateVersion(t *testing.T) {
	withBuildInfo(t, "0.4.0-rc.1", "unknown", "unknown")
	assert.NoError(t, ValidateVersion())

	withBuildInfo(t, "four", "unknown", "unknown")
	assert.Error(t, ValidateVersion())
}

func TestCompareVersions(t *testing.T) {
	cmp, err := CompareVersions("1.2.0", "1.10.0")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareVersions("2.0.0", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	_, err = CompareVersions("x", "1.0.0")
	assert.Error(t, err)
}

func TestServerSupported(t *testing.T) {
	assert.True(t, ServerSupported(""))
	assert.True(t, ServerSupported("garbage"))
	assert.True(t, ServerSupported("1.2.0"))
	assert.True(t, ServerSupported("2.0.3"))
	assert.False(t, ServerSupported("1.1.9"))
}
