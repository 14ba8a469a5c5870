package onset

import "sort"

// Source is one detector's onset times and its weight in the vote
type Source struct {
	Score  float64
	Onsets []float64
}

type scoredOnset struct {
	time  float64
	score float64
}

// Combine merges onset lists from several detectors. All onsets are sorted
// by time; starting from the earliest unconsumed onset, every onset within
// tolerance seconds of it joins its cluster. A cluster whose summed score
// strictly exceeds requiredScore emits its first (anchor) time.
func Combine(requiredScore, tolerance float64, sources []Source) []float64 {
	var all []scoredOnset
	for _, src := range sources {
		for _, t := range src.Onsets {
			all = append(all, scoredOnset{time: t, score: src.Score})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].time < all[j].time
	})

	combined := []float64{}

	for i := 0; i < len(all); {
		anchor := all[i].time

		total := 0.0
		for i < len(all) && all[i].time-anchor <= tolerance {
			total += all[i].score
			i++
		}

		if total > requiredScore {
			combined = append(combined, anchor)
		}
	}

	return combined
}
