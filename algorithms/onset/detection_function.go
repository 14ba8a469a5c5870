// Package onset turns short-time spectra into onset times: detection
// functions, adaptive peak picking and the weighted ensemble vote.
package onset

import (
	"fmt"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/config"
)

// Spectra is the STFT output the detection functions consume
type Spectra = common.Series[[]complex128]

// Curve is a detection function output, one onset strength per frame
type Curve = common.Series[float64]

// DetectionFunction maps a spectrogram to an onset strength curve.
// The set of implementations is closed: HighFrequencyContent,
// SpectralDifference and LogFilteredSpectralFlux.
type DetectionFunction interface {
	Method() config.OnsetMethod
	Compute(spectra *Spectra, sampleRate int) (*Curve, error)
}

// NewDetectionFunction returns the detection function for method, using the
// LFSF parameters from cfg where relevant
func NewDetectionFunction(method config.OnsetMethod, cfg *config.AnalysisConfig) (DetectionFunction, error) {
	switch method {
	case config.MethodHFC:
		return &HighFrequencyContent{}, nil
	case config.MethodSpectralDifference:
		return &SpectralDifference{}, nil
	case config.MethodLFSF:
		return &LogFilteredSpectralFlux{
			MelBands:  cfg.MelBands,
			LogLambda: cfg.LogLambda,
		}, nil
	default:
		return nil, fmt.Errorf("unknown onset method %q", method)
	}
}

func checkSpectra(spectra *Spectra) error {
	if spectra == nil || spectra.Len() == 0 {
		return fmt.Errorf("no spectral frames")
	}
	return nil
}
