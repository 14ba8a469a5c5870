package onset

import (
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/spectral"
	"github.com/RyanBlaney/sonido-beat/config"
)

// HighFrequencyContent weights each bin's energy by its index, emphasizing
// the broadband high-frequency bursts of percussive onsets:
//
//	hfc[f] = 1/W * sum_k |X_f[k]|^2 * k/W
type HighFrequencyContent struct{}

// Method returns the configuration name of this detection function
func (h *HighFrequencyContent) Method() config.OnsetMethod {
	return config.MethodHFC
}

// Compute returns the high frequency content of every frame
func (h *HighFrequencyContent) Compute(spectra *Spectra, sampleRate int) (*Curve, error) {
	if err := checkSpectra(spectra); err != nil {
		return nil, err
	}

	size := float64(spectra.WindowSize)
	weights := make([]float64, spectra.WindowSize)
	for k := range weights {
		weights[k] = float64(k) / size
	}

	power := spectral.NewPowerSpectrum()
	return common.MapSeries(spectra, func(frame []complex128) float64 {
		energy := power.Compute(frame)
		n := min(len(energy), len(weights))
		return floats.Dot(energy[:n], weights[:n]) / size
	}), nil
}
