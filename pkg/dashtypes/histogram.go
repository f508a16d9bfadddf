package dashtypes

import (
	"fmt"
	"math"
)

// DefaultHistogramBins is used when a histogram trace sets no nbinsx.
const DefaultHistogramBins = 10

// MaxHistogramBins bounds the nbinsx a histogram trace may request.
const MaxHistogramBins = 1000

// Histogram is a set of samples counted into equal-width bins.
type Histogram struct {
	Start  float64
	Width  float64
	Counts []int
}

// BinStart returns the lower edge of bin i.
func (h Histogram) BinStart(i int) float64 {
	return h.Start + float64(i)*h.Width
}

// HistogramSamples returns the numeric x values of a histogram trace, or its y
// values when x is empty.
func (t Trace) HistogramSamples() []float64 {
	raw := t.X()
	if len(raw) == 0 {
		raw = t.Y()
	}
	var samples []float64
	for _, r := range raw {
		if v, ok := Number(r); ok {
			samples = append(samples, v)
		}
	}
	return samples
}

// HistogramBins reads nbinsx. Values below one fall back to
// DefaultHistogramBins; values above MaxHistogramBins are an error.
func (t Trace) HistogramBins() (int, error) {
	n, ok := Number(t["nbinsx"])
	if !ok || math.IsNaN(n) || n < 1 {
		return DefaultHistogramBins, nil
	}
	if n > MaxHistogramBins {
		return 0, fmt.Errorf("nbinsx %g is out of range (1-%d)", n, MaxHistogramBins)
	}
	return int(n), nil
}

// BinTrace counts a histogram trace's samples. A trace whose samples are all
// equal gets a single bin.
func BinTrace(t Trace) (Histogram, error) {
	samples := t.HistogramSamples()
	if len(samples) == 0 {
		return Histogram{}, fmt.Errorf("histogram has no numeric samples")
	}
	bins, err := t.HistogramBins()
	if err != nil {
		return Histogram{}, err
	}

	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		bins = 1
	}
	h := Histogram{Start: lo, Width: (hi - lo) / float64(bins), Counts: make([]int, bins)}
	for _, v := range samples {
		idx := 0
		if h.Width > 0 {
			idx = int((v - lo) / h.Width)
		}
		if idx >= bins {
			idx = bins - 1
		}
		h.Counts[idx]++
	}
	return h, nil
}
