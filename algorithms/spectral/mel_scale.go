package spectral

import (
	"fmt"
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a set of overlapping triangular filters spaced evenly on
// the mel scale between 0 Hz and Nyquist. Each filter has fftSize/2+1 taps,
// one per non-negative frequency bin.
type MelFilterBank struct {
	Filters    [][]float64
	FFTSize    int
	SampleRate int
}

// NewMelFilterBank builds a filter bank for spectra of fftSize bins
func NewMelFilterBank(numFilters, fftSize, sampleRate int) (*MelFilterBank, error) {
	if numFilters <= 0 {
		return nil, fmt.Errorf("number of mel filters must be positive, got %d", numFilters)
	}
	if fftSize < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numBins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2

	// Equally spaced mel points, converted back to Hz
	lowMel := HzToMel(0)
	highMel := HzToMel(nyquist)
	hzPoints := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range hzPoints {
		hzPoints[i] = MelToHz(lowMel + float64(i)*melStep)
	}

	binHz := float64(sampleRate) / float64(fftSize)

	// Triangles are evaluated at each bin's frequency. Filters narrower than
	// one bin may end up empty at small fft sizes.
	filters := make([][]float64, numFilters)
	for m := range filters {
		filters[m] = make([]float64, numBins)

		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		for k := 0; k < numBins; k++ {
			f := float64(k) * binHz
			var w float64
			switch {
			case f > left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f < right:
				w = (right - f) / (right - center)
			}
			filters[m][k] = w
		}
	}

	return &MelFilterBank{
		Filters:    filters,
		FFTSize:    fftSize,
		SampleRate: sampleRate,
	}, nil
}

// NumBands returns the number of filters
func (mb *MelFilterBank) NumBands() int {
	return len(mb.Filters)
}

// Apply projects a magnitude spectrum onto the filter bank. Only the first
// fftSize/2+1 entries of magnitude are read, so a full two-sided spectrum
// can be passed directly.
func (mb *MelFilterBank) Apply(magnitude []float64) []float64 {
	bands := make([]float64, len(mb.Filters))

	for i, filter := range mb.Filters {
		sum := 0.0
		for k := 0; k < len(filter) && k < len(magnitude); k++ {
			sum += magnitude[k] * filter[k]
		}
		bands[i] = sum
	}

	return bands
}
