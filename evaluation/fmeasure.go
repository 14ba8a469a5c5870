package evaluation

import (
	"math"
	"sort"
)

// Score counts matches between detected and reference event times
type Score struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
}

// Evaluate matches found against truth with a symmetric ±tolerance window.
// Both lists are walked in time order; each reference time is consumed by
// at most one detection. Detections left over once the reference list is
// exhausted count as false positives, and vice versa.
func Evaluate(found, truth []float64, tolerance float64) Score {
	found = sortedCopy(found)
	truth = sortedCopy(truth)

	var s Score
	i, j := 0, 0
	for i < len(found) && j < len(truth) {
		switch {
		case math.Abs(found[i]-truth[j]) <= tolerance:
			s.TruePositives++
			i++
			j++
		case found[i] < truth[j]:
			s.FalsePositives++
			i++
		default:
			s.FalseNegatives++
			j++
		}
	}
	s.FalsePositives += len(found) - i
	s.FalseNegatives += len(truth) - j

	return s
}

// Precision is TP/(TP+FP); ok is false when nothing was detected
func (s Score) Precision() (float64, bool) {
	return ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
}

// Recall is TP/(TP+FN); ok is false when the reference is empty
func (s Score) Recall() (float64, bool) {
	return ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
}

// FMeasure is the harmonic mean of precision and recall. It is undefined
// when either is undefined or both are zero.
func (s Score) FMeasure() (float64, bool) {
	p, ok := s.Precision()
	if !ok {
		return 0, false
	}
	r, ok := s.Recall()
	if !ok {
		return 0, false
	}
	if p+r == 0 {
		return 0, false
	}
	return 2 * p * r / (p + r), true
}

// Metrics is the serializable form of a Score; undefined metrics are nil
type Metrics struct {
	Score
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	FMeasure  *float64 `json:"f_measure"`
}

// Metrics computes all three metrics
func (s Score) Metrics() Metrics {
	return Metrics{
		Score:     s,
		Precision: optional(s.Precision()),
		Recall:    optional(s.Recall()),
		FMeasure:  optional(s.FMeasure()),
	}
}

// TempoMatches reports whether either candidate lies within ±deviation
// (relative) of the reference tempo
func TempoMatches(reference float64, deviation float64, candidates ...float64) bool {
	for _, c := range candidates {
		if math.Abs(c-reference) <= deviation*reference {
			return true
		}
	}
	return false
}

func ratio(num, den int) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}
