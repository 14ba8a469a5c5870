package temporal

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/logging"
)

var (
	// ErrDegenerateCurve is returned when the detection curve carries no
	// energy (e.g. silence) and its autocorrelation is meaningless
	ErrDegenerateCurve = errors.New("detection curve has no energy")

	// ErrLagWindow is returned when the BPM range maps to lags outside the
	// autocorrelation of the curve
	ErrLagWindow = errors.New("tempo lag window outside autocorrelation")
)

// Candidate is one tempo hypothesis
type Candidate struct {
	Lag int     `json:"lag"` // beat period in frames
	BPM float64 `json:"bpm"`
}

// TempoEstimation finds the beat period of a detection curve by
// autocorrelation within a BPM range
type TempoEstimation struct {
	slowestBPM float64
	fastestBPM float64
	logger     logging.Logger
}

// NewTempoEstimation creates a tempo estimator searching slowestBPM..fastestBPM
func NewTempoEstimation(slowestBPM, fastestBPM float64) *TempoEstimation {
	return &TempoEstimation{
		slowestBPM: slowestBPM,
		fastestBPM: fastestBPM,
		logger: logging.WithFields(logging.Fields{
			"component": "tempo_estimation",
		}),
	}
}

// Estimate returns the best and second-best tempo candidates. The search
// covers lags BPMToLag(fastest)..BPMToLag(slowest) inclusive, clipped to
// the autocorrelation length.
func (te *TempoEstimation) Estimate(curve *common.Series[float64], sampleRate int) (Candidate, Candidate, error) {
	if curve == nil || curve.Len() == 0 {
		return Candidate{}, Candidate{}, fmt.Errorf("empty detection curve: %w", ErrDegenerateCurve)
	}
	if sampleRate <= 0 || curve.HopSize <= 0 {
		return Candidate{}, Candidate{}, fmt.Errorf("invalid sample rate %d or hop size %d", sampleRate, curve.HopSize)
	}
	if !common.IsFinite(curve.Data) {
		return Candidate{}, Candidate{}, fmt.Errorf("non-finite detection curve: %w", ErrDegenerateCurve)
	}

	acf := common.Autocorrelation(curve.Data)
	if acf[0] <= 0 {
		return Candidate{}, Candidate{}, ErrDegenerateCurve
	}

	low := max(1, BPMToLag(te.fastestBPM, curve.HopSize, sampleRate))
	high := min(len(acf)-1, BPMToLag(te.slowestBPM, curve.HopSize, sampleRate))
	if high < low {
		return Candidate{}, Candidate{}, fmt.Errorf("lags %d..%d with %d frames: %w", low, high, len(acf), ErrLagWindow)
	}

	bestLag, secondLag := twoLargest(acf, low, high)

	best := Candidate{Lag: bestLag, BPM: LagToBPM(bestLag, curve.HopSize, sampleRate)}
	second := Candidate{Lag: secondLag, BPM: LagToBPM(secondLag, curve.HopSize, sampleRate)}

	te.logger.Debug("tempo estimated", logging.Fields{
		"best_bpm":   best.BPM,
		"second_bpm": second.BPM,
		"lag_low":    low,
		"lag_high":   high,
	})

	return best, second, nil
}

// twoLargest scans values[low..high] once keeping two running winners.
// Ties go to the later lag; a displaced winner always becomes the runner-up.
// The runner-up is a different lag unless the window holds a single lag.
func twoLargest(values []float64, low, high int) (int, int) {
	best, second := -1, -1

	for i := low; i <= high; i++ {
		switch {
		case best < 0 || values[best] <= values[i]:
			second = best
			best = i
		case second < 0 || values[second] <= values[i]:
			second = i
		}
	}

	if second < 0 {
		second = best
	}
	return best, second
}

// BPMToLag converts a tempo into a beat period in frames, truncated
func BPMToLag(bpm float64, hopSize, sampleRate int) int {
	period := 60.0 / bpm
	return int(period / common.FramePeriod(hopSize, sampleRate))
}

// LagToBPM converts a beat period in frames into a tempo
func LagToBPM(lag, hopSize, sampleRate int) float64 {
	return 60.0 / (float64(lag) * common.FramePeriod(hopSize, sampleRate))
}
