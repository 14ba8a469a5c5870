package onset

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/spectral"
	"github.com/RyanBlaney/sonido-beat/config"
)

// LogFilteredSpectralFlux projects magnitudes onto a mel filter bank,
// compresses each band with log10(lambda*x + 1) and sums the positive
// band-wise change from the previous frame. The frame before the first is
// treated as all zeros.
type LogFilteredSpectralFlux struct {
	MelBands  int
	LogLambda float64
}

// Method returns the configuration name of this detection function
func (l *LogFilteredSpectralFlux) Method() config.OnsetMethod {
	return config.MethodLFSF
}

// Compute returns the log filtered spectral flux of every frame
func (l *LogFilteredSpectralFlux) Compute(spectra *Spectra, sampleRate int) (*Curve, error) {
	if err := checkSpectra(spectra); err != nil {
		return nil, err
	}
	if l.LogLambda <= 0 {
		return nil, fmt.Errorf("log lambda must be positive, got %g", l.LogLambda)
	}

	bank, err := spectral.NewMelFilterBank(l.MelBands, spectra.WindowSize, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("lfsf filter bank: %w", err)
	}

	bands := common.MapSeries(spectra, func(frame []complex128) []float64 {
		filtered := bank.Apply(spectral.Magnitude(frame))
		for i, x := range filtered {
			filtered[i] = math.Log10(x*l.LogLambda + 1)
		}
		return filtered
	})

	return common.WithData(spectra, spectral.NewSpectralFlux().Compute(bands.Data)), nil
}
