package dashtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinTrace(t *testing.T) {
	h, err := BinTrace(Trace{"type": "histogram", "x": []any{1.0, 2.0, 2.0, 3.0, 9.0}, "nbinsx": 4.0})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 0, 1}, h.Counts)
	assert.Equal(t, 1.0, h.Start)
	assert.Equal(t, 5.0, h.BinStart(2))
}

func TestBinTraceFallsBackToY(t *testing.T) {
	h, err := BinTrace(Trace{"y": []any{"4", 4.0}})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, h.Counts, "equal samples share one bin")
}

func TestHistogramBins(t *testing.T) {
	tests := []struct {
		name    string
		nbinsx  any
		want    int
		wantErr bool
	}{
		{"unset", nil, DefaultHistogramBins, false},
		{"zero", 0.0, DefaultHistogramBins, false},
		{"explicit", 25.0, 25, false},
		{"at limit", float64(MaxHistogramBins), MaxHistogramBins, false},
		{"over limit", 1e19, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trace{"nbinsx": tt.nbinsx}.HistogramBins()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBinTraceNoSamples(t *testing.T) {
	_, err := BinTrace(Trace{"x": []any{"north"}})
	assert.EqualError(t, err, "histogram has no numeric samples")
}
