package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runesToStrings(in [][]rune) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = string(r)
	}
	return out
}

func newTestCompleter(t *testing.T) *AutoCompleteService {
	t.Helper()
	a := NewAutoCompleteService()
	require.NoError(t, a.Initialize())
	charts := func(args []string) []string {
		if len(args) > 0 {
			return nil
		}
		return []string{"c_revenue", "c_orders"}
	}
	a.SetCommand("ask", nil)
	a.SetCommand("add-chart", nil)
	a.SetCommand("delete", charts)
	a.SetCommand("colors", func([]string) []string { return []string{"ocean", "sunset"} })
	return a
}

func TestAutoCompleteService_NotInitialized(t *testing.T) {
	a := NewAutoCompleteService()
	a.SetCommand("ask", nil)
	out, offset := a.Do([]rune("a"), 1)
	assert.Nil(t, out)
	assert.Zero(t, offset)
}

func TestAutoCompleteService_CommandNames(t *testing.T) {
	a := newTestCompleter(t)
	assert.Equal(t, []string{"add-chart", "ask", "colors", "delete"}, a.Commands())

	out, offset := a.Do([]rune("a"), 1)
	assert.Equal(t, 1, offset)
	assert.Equal(t, []string{"dd-chart ", "sk "}, runesToStrings(out))

	out, _ = a.Do([]rune(""), 0)
	assert.Len(t, out, 4)
}

func TestAutoCompleteService_Arguments(t *testing.T) {
	a := newTestCompleter(t)

	out, offset := a.Do([]rune("delete c_r"), 10)
	assert.Equal(t, 3, offset)
	assert.Equal(t, []string{"evenue "}, runesToStrings(out))

	out, _ = a.Do([]rune("delete "), 7)
	assert.Equal(t, []string{"c_orders ", "c_revenue "}, runesToStrings(out))

	// Second argument has no source
	out, _ = a.Do([]rune("delete c_orders "), 16)
	assert.Empty(t, out)
}

func TestAutoCompleteService_UnknownOrFreeText(t *testing.T) {
	a := newTestCompleter(t)

	out, _ := a.Do([]rune("ask sho"), 7)
	assert.Empty(t, out)

	out, _ = a.Do([]rune("bogus x"), 7)
	assert.Empty(t, out)
}

func TestAutoCompleteService_CursorInsideLine(t *testing.T) {
	a := newTestCompleter(t)
	out, offset := a.Do([]rune("colors oc trailing"), 9)
	assert.Equal(t, 2, offset)
	assert.Equal(t, []string{"ean "}, runesToStrings(out))
}

func TestFindWordStart(t *testing.T) {
	assert.Equal(t, 0, findWordStart("abc"))
	assert.Equal(t, 4, findWordStart("sum region=no"[:4]))
	assert.Equal(t, 10, findWordStart("filter c1 x=a"[:11]))
	assert.Equal(t, 7, findWordStart("region=no"))
}
