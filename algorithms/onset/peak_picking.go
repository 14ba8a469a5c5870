package onset

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/config"
)

// ErrNoStrongPeak is returned when no picked peak is stronger than the peak
// following it, so there is no seed for beat tracking
var ErrNoStrongPeak = errors.New("no peak is stronger than its successor")

// PeakPicker selects onset frames from a detection curve
type PeakPicker struct {
	localWindowMax  int
	localWindowMean int
	delta           float64
	minimumDistance int
}

// PeakMask marks the frames accepted as onsets
type PeakMask struct {
	*common.Series[bool]

	values          []float64
	firstStrongPeak int
}

// NewPeakPicker creates a peak picker from its configuration
func NewPeakPicker(cfg config.PeakPickerConfig) *PeakPicker {
	return &PeakPicker{
		localWindowMax:  max(0, cfg.LocalWindowMax),
		localWindowMean: max(0, cfg.LocalWindowMean),
		delta:           cfg.Delta,
		minimumDistance: max(0, cfg.MinimumDistance),
	}
}

// Pick sweeps frames 1..n-2 left to right. Frame i is a peak when
//
//  1. curve[i-1] < curve[i] > curve[i+1]
//  2. no peak was accepted in the minimumDistance frames before i
//  3. curve[i] >= mean(curve[i-w3 .. i+w3]) + delta
//  4. curve[i] >= max(curve[i-w1 .. i+w1])
//
// with windows clamped to the curve.
func (pp *PeakPicker) Pick(curve *Curve) *PeakMask {
	values := curve.Data
	n := len(values)
	peaks := make([]bool, n)

	for i := 1; i < n-1; i++ {
		if !(values[i-1] < values[i] && values[i] > values[i+1]) {
			continue
		}
		if !pp.farFromPrevious(peaks, i) {
			continue
		}

		meanLeft, meanRight := clampWindow(i, pp.localWindowMean, n)
		if values[i] < stat.Mean(values[meanLeft:meanRight], nil)+pp.delta {
			continue
		}

		maxLeft, maxRight := clampWindow(i, pp.localWindowMax, n)
		if values[i] < floats.Max(values[maxLeft:maxRight]) {
			continue
		}

		peaks[i] = true
	}

	mask := &PeakMask{
		Series:          common.WithData(curve, peaks),
		values:          values,
		firstStrongPeak: -1,
	}
	mask.firstStrongPeak = findFirstStrongPeak(mask.Indices(), values)

	return mask
}

// farFromPrevious reports whether frames i-minimumDistance..i-1 hold no peak
func (pp *PeakPicker) farFromPrevious(peaks []bool, i int) bool {
	for j := max(0, i-pp.minimumDistance); j < i; j++ {
		if peaks[j] {
			return false
		}
	}
	return true
}

// clampWindow returns the half-open range [i-half, i+half+1) clipped to [0, n)
func clampWindow(i, half, n int) (int, int) {
	return max(0, i-half), min(n, i+half+1)
}

// findFirstStrongPeak returns the position (within peaks) of the first peak
// whose value exceeds the next peak's value, or -1
func findFirstStrongPeak(peaks []int, values []float64) int {
	for j := 0; j+1 < len(peaks); j++ {
		if values[peaks[j]] > values[peaks[j+1]] {
			return j
		}
	}
	return -1
}

// Indices returns the frame indices of all peaks in ascending order
func (m *PeakMask) Indices() []int {
	var idx []int
	for i, isPeak := range m.Data {
		if isPeak {
			idx = append(idx, i)
		}
	}
	return idx
}

// Count returns the number of peaks
func (m *PeakMask) Count() int {
	count := 0
	for _, isPeak := range m.Data {
		if isPeak {
			count++
		}
	}
	return count
}

// FirstStrongPeak returns the index, counted among peaks only, of the first
// peak that is stronger than the peak after it. The onset at this index
// seeds beat tracking.
func (m *PeakMask) FirstStrongPeak() (int, error) {
	if m.firstStrongPeak < 0 {
		return 0, ErrNoStrongPeak
	}
	return m.firstStrongPeak, nil
}

// OnsetTimes converts the peak frames to seconds
func (m *PeakMask) OnsetTimes(sampleRate int) []float64 {
	times := make([]float64, 0, m.Count())
	for i, isPeak := range m.Data {
		if isPeak {
			times = append(times, common.FrameTime(i, m.HopSize, sampleRate))
		}
	}
	return times
}
