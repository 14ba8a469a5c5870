package windowing

import (
	"fmt"
)

// Rectangular is the boxcar window: every frame passes through unchanged.
// It gives exact sample sums in the DC bin, which makes it the reference
// taper for checking frame boundaries.
type Rectangular struct {
	size int
}

// NewRectangular creates a new rectangular window
func NewRectangular(size int) *Rectangular {
	return &Rectangular{size: size}
}

// Apply returns a copy of signal
func (r *Rectangular) Apply(signal []float64) []float64 {
	if len(signal) != r.size {
		return nil
	}
	return append([]float64(nil), signal...)
}

// ApplyInPlace only checks the frame length
func (r *Rectangular) ApplyInPlace(signal []float64) error {
	if len(signal) != r.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), r.size)
	}
	return nil
}

// GetCoefficients returns size ones
func (r *Rectangular) GetCoefficients() []float64 {
	coeffs := make([]float64, r.size)
	for i := range coeffs {
		coeffs[i] = 1
	}
	return coeffs
}

// GetSize returns the window size
func (r *Rectangular) GetSize() int {
	return r.size
}
