package onset

import (
	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/spectral"
	"github.com/RyanBlaney/sonido-beat/config"
)

// SpectralDifference sums the rectified squared magnitude change per bin:
//
//	sd[f] = sum_k H((|X_f[k]| - |X_{f-1}[k]|)^2),  H(x) = (x+|x|)/2
//
// Frame 0 has no predecessor and scores 0.
type SpectralDifference struct{}

// Method returns the configuration name of this detection function
func (sd *SpectralDifference) Method() config.OnsetMethod {
	return config.MethodSpectralDifference
}

// Compute returns the spectral difference of every frame
func (sd *SpectralDifference) Compute(spectra *Spectra, sampleRate int) (*Curve, error) {
	if err := checkSpectra(spectra); err != nil {
		return nil, err
	}

	mags := common.MapSeries(spectra, spectral.Magnitude)
	return common.WithData(spectra, spectral.NewSpectralFlux().ComputeAllChanges(mags.Data)), nil
}
