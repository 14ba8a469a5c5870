package common

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-beat/config"
)

// Normalizer scales detection curves before peak picking. One method is
// applied to every curve of an analysis so thresholds stay comparable.
type Normalizer struct {
	method config.NormalizationMethod
}

// NewNormalizer creates a new normalizer
func NewNormalizer(method config.NormalizationMethod) (*Normalizer, error) {
	switch method {
	case config.NormalizeMinMax, config.NormalizeMeanMax:
	default:
		return nil, fmt.Errorf("unknown normalization method %q", method)
	}
	return &Normalizer{method: method}, nil
}

// Normalize returns a normalized copy of signal
func (n *Normalizer) Normalize(signal []float64) []float64 {
	switch n.method {
	case config.NormalizeMeanMax:
		return MeanMaxNormalize(signal)
	default:
		return MinMaxNormalize(signal)
	}
}

// NormalizeSeries normalizes a detection curve, keeping its framing
func (n *Normalizer) NormalizeSeries(curve *Series[float64]) *Series[float64] {
	return WithData(curve, n.Normalize(curve.Data))
}

// MinMaxNormalize maps data onto [0, 1]. Constant input maps to all zeros.
func MinMaxNormalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	min := floats.Min(data)
	max := floats.Max(data)

	if math.Abs(max-min) < 1e-12 {
		return normalized
	}

	for i, val := range data {
		normalized[i] = (val - min) / (max - min)
	}

	return normalized
}

// MeanMaxNormalize subtracts the mean and divides by the maximum.
// A zero maximum leaves the demeaned values unscaled.
func MeanMaxNormalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	mean := Mean(data)
	max := floats.Max(data)

	for i, val := range data {
		normalized[i] = val - mean
		if max != 0 {
			normalized[i] /= max
		}
	}

	return normalized
}
