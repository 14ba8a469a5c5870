package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the onset and tempo algorithms, built on gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// HalfWaveRectify returns (x + |x|) / 2, i.e. max(x, 0)
func HalfWaveRectify(x float64) float64 {
	return (x + math.Abs(x)) / 2
}

// Autocorrelation computes the biased, non-demeaned autocorrelation
//
//	r[k] = 1/N * sum_{i=0}^{N-1-k} x[i]*x[i+k]   for k = 0..N-1
func Autocorrelation(signal []float64) []float64 {
	n := len(signal)
	if n == 0 {
		return []float64{}
	}

	acf := make([]float64, n)
	for lag := 0; lag < n; lag++ {
		acf[lag] = floats.Dot(signal[:n-lag], signal[lag:]) / float64(n)
	}

	return acf
}

// IsFinite reports whether every value is neither NaN nor infinite
func IsFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
