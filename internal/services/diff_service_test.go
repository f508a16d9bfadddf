package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffService_Diff(t *testing.T) {
	service := NewDiffService()
	assert.Equal(t, "diff", service.Name())
	assert.NoError(t, service.Initialize())

	before := "fig = px.bar(df, x='region', y='sales')\nfig.show()\n"
	after := "fig = px.bar(df, x='region', y='profit')\nfig.show()\n"

	out := service.Diff(before, after)
	assert.Equal(t,
		"- fig = px.bar(df, x='region', y='sales')\n"+
			"+ fig = px.bar(df, x='region', y='profit')\n"+
			"  fig.show()\n",
		out)
}

func TestDiffService_Equal(t *testing.T) {
	service := NewDiffService()
	assert.Equal(t, "", service.Diff("same\n", "same\n"))
}

func TestDiffService_ThemedOutputKeepsText(t *testing.T) {
	service := NewDiffService()
	service.SetTheme(plainTheme("plain"))

	out := service.Diff("a\n", "b\n")
	assert.Contains(t, out, "- a")
	assert.Contains(t, out, "+ b")
}

func TestDiffService_Stats(t *testing.T) {
	service := NewDiffService()

	added, removed := service.Stats("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)

	added, removed = service.Stats("x", "x")
	assert.Zero(t, added)
	assert.Zero(t, removed)

	// Last line without a trailing newline still counts
	added, removed = service.Stats("", "one\ntwo")
	assert.Equal(t, 2, added)
	assert.Zero(t, removed)
}
