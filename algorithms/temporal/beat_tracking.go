package temporal

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidTempo is returned for non-positive or non-finite tempos
	ErrInvalidTempo = errors.New("tempo must be positive and finite")

	// ErrSeedOutOfRange is returned when the seed onset index is not in the onset list
	ErrSeedOutOfRange = errors.New("seed onset index out of range")
)

// gapFactor is how many beat periods may pass before a missing beat is
// filled in at the ideal position
const gapFactor = 1.3

// BeatTracking walks the onset list forward choosing, for each beat, the
// onset closest to one beat period after the previous beat
type BeatTracking struct{}

// NewBeatTracking creates a beat tracker
func NewBeatTracking() *BeatTracking {
	return &BeatTracking{}
}

// Track returns beat times seeded at onsets[first].
//
// While two candidate onsets next1 = onsets[i] and next2 = onsets[i+1]
// remain, a synthetic beat is inserted at last+period when next1 is more
// than 1.3 periods away, then whichever candidate is nearer to
// last+period becomes the next beat. Choosing next2 discards next1 as a
// spurious onset. A single trailing onset is accepted the same way
// without a competitor.
func (bt *BeatTracking) Track(bpm float64, onsets []float64, first int) ([]float64, error) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("bpm %g: %w", bpm, ErrInvalidTempo)
	}
	if first < 0 || first >= len(onsets) {
		return nil, fmt.Errorf("index %d with %d onsets: %w", first, len(onsets), ErrSeedOutOfRange)
	}

	period := 60.0 / bpm

	last := onsets[first]
	beats := []float64{last}

	i := first + 1
	for i+1 < len(onsets) {
		next1, next2 := onsets[i], onsets[i+1]

		if next1-last > gapFactor*period {
			last += period
			beats = append(beats, last)
		}

		ideal := last + period
		diff1 := math.Abs(ideal - next1)
		diff2 := math.Abs(ideal - next2)

		if diff1 < diff2 {
			last = next1
			i++
		} else {
			last = next2
			i += 2
		}
		beats = append(beats, last)
	}

	if i < len(onsets) {
		next := onsets[i]
		if next-last > gapFactor*period {
			last += period
			beats = append(beats, last)
		}
		beats = append(beats, next)
	}

	return beats, nil
}
