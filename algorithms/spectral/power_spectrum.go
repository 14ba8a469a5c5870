package spectral

// PowerSpectrum computes per-bin energy |X[k]|^2
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute returns |X[k]|^2 for every bin of a complex spectrum
func (ps *PowerSpectrum) Compute(spectrum []complex128) []float64 {
	power := make([]float64, len(spectrum))
	for k, x := range spectrum {
		re, im := real(x), imag(x)
		power[k] = re*re + im*im
	}
	return power
}
