package temporal

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/logging"
)

const (
	testSampleRate = 44100
	testHopSize    = 512
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func impulseCurve(frames, period int) *common.Series[float64] {
	data := make([]float64, frames)
	for i := 0; i < frames; i += period {
		data[i] = 1
	}
	return common.NewSeries(data, 2048, testHopSize)
}

func floatsClose(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestBPMLagConversion(t *testing.T) {
	// one frame is 512/44100 = 11.61ms
	if got := BPMToLag(200, testHopSize, testSampleRate); got != 25 {
		t.Errorf("BPMToLag(200) = %d, want 25", got)
	}
	if got := BPMToLag(60, testHopSize, testSampleRate); got != 86 {
		t.Errorf("BPMToLag(60) = %d, want 86", got)
	}
	if got := LagToBPM(43, testHopSize, testSampleRate); math.Abs(got-120.18) > 0.01 {
		t.Errorf("LagToBPM(43) = %g, want ~120.18", got)
	}
}

func TestTempoEstimationPeriodicImpulses(t *testing.T) {
	te := NewTempoEstimation(60, 200)

	for _, period := range []int{30, 43, 50, 64, 80} {
		best, second, err := te.Estimate(impulseCurve(1500, period), testSampleRate)
		if err != nil {
			t.Fatalf("period %d: %v", period, err)
		}
		if best.Lag != period {
			t.Errorf("period %d: best lag = %d", period, best.Lag)
		}
		wantBPM := LagToBPM(period, testHopSize, testSampleRate)
		if math.Abs(best.BPM-wantBPM) > 1e-9 {
			t.Errorf("period %d: best bpm = %g, want %g", period, best.BPM, wantBPM)
		}
		if second.Lag == best.Lag {
			t.Errorf("period %d: second candidate equals best", period)
		}
	}
}

func TestTempoEstimationSecondCandidate(t *testing.T) {
	te := NewTempoEstimation(60, 200)

	// lag 43 and its double 86 are the only non-zero lags in 25..86
	best, second, err := te.Estimate(impulseCurve(1000, 43), testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if best.Lag != 43 || second.Lag != 86 {
		t.Errorf("candidates = %d, %d; want 43, 86", best.Lag, second.Lag)
	}
}

func TestTwoLargest(t *testing.T) {
	values := []float64{9, 1, 5, 3, 5, 2}

	best, second := twoLargest(values, 1, 5)
	// ties go to the later index
	if best != 4 || second != 2 {
		t.Errorf("twoLargest = %d, %d; want 4, 2", best, second)
	}

	best, second = twoLargest(values, 3, 3)
	if best != 3 || second != 3 {
		t.Errorf("single-element window = %d, %d; want 3, 3", best, second)
	}

	// the maximum sits at the first lag of the window
	best, second = twoLargest([]float64{9, 8, 7, 6}, 0, 3)
	if best != 0 || second != 1 {
		t.Errorf("decreasing window = %d, %d; want 0, 1", best, second)
	}
}

func TestTempoEstimationDecayingCurve(t *testing.T) {
	data := make([]float64, 400)
	for i := range data {
		data[i] = 1 / float64(i+1)
	}
	curve := common.NewSeries(data, 2048, testHopSize)

	best, second, err := NewTempoEstimation(60, 200).Estimate(curve, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if best.Lag == second.Lag {
		t.Errorf("both candidates at lag %d", best.Lag)
	}
	if second.Lag != best.Lag+1 {
		t.Errorf("second lag = %d, want %d", second.Lag, best.Lag+1)
	}
}

func TestTempoEstimationErrors(t *testing.T) {
	te := NewTempoEstimation(60, 200)

	silent := common.NewSeries(make([]float64, 500), 2048, testHopSize)
	if _, _, err := te.Estimate(silent, testSampleRate); !errors.Is(err, ErrDegenerateCurve) {
		t.Errorf("silent curve err = %v, want ErrDegenerateCurve", err)
	}

	short := impulseCurve(10, 3)
	if _, _, err := te.Estimate(short, testSampleRate); !errors.Is(err, ErrLagWindow) {
		t.Errorf("short curve err = %v, want ErrLagWindow", err)
	}

	nan := common.NewSeries([]float64{1, math.NaN(), 1}, 2048, testHopSize)
	if _, _, err := te.Estimate(nan, testSampleRate); !errors.Is(err, ErrDegenerateCurve) {
		t.Errorf("NaN curve err = %v, want ErrDegenerateCurve", err)
	}

	if _, _, err := te.Estimate(impulseCurve(500, 43), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestBeatTrackingFollowsOnsets(t *testing.T) {
	onsets := []float64{0.0, 0.52, 1.0, 1.48, 2.0}

	beats, err := NewBeatTracking().Track(120, onsets, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !floatsClose(beats, onsets, 1e-12) {
		t.Errorf("beats = %v, want %v", beats, onsets)
	}
}

func TestBeatTrackingFillsGap(t *testing.T) {
	beats, err := NewBeatTracking().Track(120, []float64{0.0, 1.6}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.0, 0.5, 1.6}
	if !floatsClose(beats, want, 1e-12) {
		t.Errorf("beats = %v, want %v", beats, want)
	}
}

func TestBeatTrackingCases(t *testing.T) {
	tests := []struct {
		name   string
		bpm    float64
		onsets []float64
		first  int
		want   []float64
	}{
		{
			name:   "spurious onset skipped",
			bpm:    120,
			onsets: []float64{0.0, 0.2, 0.5, 1.0},
			want:   []float64{0.0, 0.5, 1.0},
		},
		{
			name:   "seed after leading onsets",
			bpm:    60,
			onsets: []float64{0.3, 0.7, 1.0, 2.0, 3.05},
			first:  2,
			want:   []float64{1.0, 2.0, 3.05},
		},
		{
			name:   "gap inside the loop",
			bpm:    120,
			onsets: []float64{0.0, 0.5, 1.5, 2.0, 2.5},
			want:   []float64{0.0, 0.5, 1.0, 1.5, 2.0, 2.5},
		},
		{
			name:   "seed is last onset",
			bpm:    120,
			onsets: []float64{0.0, 0.5},
			first:  1,
			want:   []float64{0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beats, err := NewBeatTracking().Track(tt.bpm, tt.onsets, tt.first)
			if err != nil {
				t.Fatal(err)
			}
			if !floatsClose(beats, tt.want, 1e-12) {
				t.Errorf("beats = %v, want %v", beats, tt.want)
			}
			for i := 1; i < len(beats); i++ {
				if beats[i] < beats[i-1] {
					t.Errorf("beats not monotonic: %v", beats)
				}
			}
		})
	}
}

func TestBeatTrackingErrors(t *testing.T) {
	bt := NewBeatTracking()

	if _, err := bt.Track(0, []float64{0, 1}, 0); !errors.Is(err, ErrInvalidTempo) {
		t.Errorf("zero bpm err = %v, want ErrInvalidTempo", err)
	}
	if _, err := bt.Track(120, []float64{0, 1}, 2); !errors.Is(err, ErrSeedOutOfRange) {
		t.Errorf("seed err = %v, want ErrSeedOutOfRange", err)
	}
	if _, err := bt.Track(120, nil, 0); !errors.Is(err, ErrSeedOutOfRange) {
		t.Errorf("empty onsets err = %v, want ErrSeedOutOfRange", err)
	}
}
