package spectral

import (
	"github.com/RyanBlaney/sonido-beat/algorithms/common"
)

// SpectralFlux measures frame-to-frame change of a spectrogram. Every
// output has one value per input frame.
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute sums the half-wave rectified increase of every bin. The frame
// before the first is taken as all zeros, so frame 0 scores its own energy.
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	flux := make([]float64, len(spectrogram))

	var prev []float64
	for t, cur := range spectrogram {
		sum := 0.0
		for f, x := range cur {
			p := 0.0
			if f < len(prev) {
				p = prev[f]
			}
			sum += common.HalfWaveRectify(x - p)
		}
		flux[t] = sum
		prev = cur
	}

	return flux
}

// ComputeAllChanges sums H(d*d) of every bin difference d, counting rises
// and falls alike. Frame 0 has no predecessor and scores 0.
func (sf *SpectralFlux) ComputeAllChanges(spectrogram [][]float64) []float64 {
	flux := make([]float64, len(spectrogram))

	for t := 1; t < len(spectrogram); t++ {
		prev, cur := spectrogram[t-1], spectrogram[t]
		sum := 0.0
		for f := 0; f < len(cur) && f < len(prev); f++ {
			d := cur[f] - prev[f]
			sum += common.HalfWaveRectify(d * d)
		}
		flux[t] = sum
	}

	return flux
}
