package onset

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/spectral"
	"github.com/RyanBlaney/sonido-beat/config"
	"github.com/RyanBlaney/sonido-beat/logging"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func randomMagnitudes(rng *rand.Rand, frames, bins int) [][]float64 {
	mags := make([][]float64, frames)
	for t := range mags {
		mags[t] = make([]float64, bins)
		for k := range mags[t] {
			mags[t][k] = rng.Float64() * 10
		}
	}
	return mags
}

// clickTrain places a short decaying noise burst every period samples
func clickTrain(n, period int, rng *rand.Rand) []float64 {
	signal := make([]float64, n)
	for start := period / 2; start < n; start += period {
		for j := 0; j < 200 && start+j < n; j++ {
			signal[start+j] = (rng.Float64()*2 - 1) * math.Exp(-float64(j)/40)
		}
	}
	return signal
}

func TestSpectralDifferenceNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		curve := spectral.NewSpectralFlux().ComputeAllChanges(randomMagnitudes(rng, 20, 33))
		if curve[0] != 0 {
			t.Fatalf("frame 0 = %g, want 0", curve[0])
		}
		for i, v := range curve {
			if v < 0 {
				t.Fatalf("trial %d: sd[%d] = %g < 0", trial, i, v)
			}
		}
	}
}

func TestSpectralFluxNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 50; trial++ {
		curve := spectral.NewSpectralFlux().Compute(randomMagnitudes(rng, 20, 16))
		for i, v := range curve {
			if v < 0 {
				t.Fatalf("trial %d: flux[%d] = %g < 0", trial, i, v)
			}
		}
	}
}

func TestSpectralFluxFirstFrame(t *testing.T) {
	frames := [][]float64{
		{1, 2},
		{3, 1},
		{3, 1},
	}
	got := spectral.NewSpectralFlux().Compute(frames)
	want := []float64{3, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flux[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestHighFrequencyContentFavorsHighBins(t *testing.T) {
	const n = 64
	low := make([]complex128, n)
	high := make([]complex128, n)
	low[2] = 10
	high[30] = 10

	spectra := common.NewSeries([][]complex128{low, high}, n, n/2)
	curve, err := (&HighFrequencyContent{}).Compute(spectra, 8000)
	if err != nil {
		t.Fatal(err)
	}

	// 100 * (2/64) / 64 and 100 * (30/64) / 64
	if math.Abs(curve.Data[0]-100*2.0/64/64) > 1e-12 {
		t.Errorf("low frame hfc = %g", curve.Data[0])
	}
	if curve.Data[1] <= curve.Data[0] {
		t.Errorf("high frame (%g) should exceed low frame (%g)", curve.Data[1], curve.Data[0])
	}
}

func TestDetectionFunctionsOnClickTrain(t *testing.T) {
	const (
		sampleRate = 8000
		period     = 2000
	)
	rng := rand.New(rand.NewSource(3))
	signal := clickTrain(sampleRate*4, period, rng)

	spectra, err := spectral.NewSTFT().Compute(signal, 512, 128)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultAnalysisConfig()
	cfg.MelBands = 40

	for _, method := range []config.OnsetMethod{config.MethodHFC, config.MethodSpectralDifference, config.MethodLFSF} {
		t.Run(string(method), func(t *testing.T) {
			odf, err := NewDetectionFunction(method, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if odf.Method() != method {
				t.Errorf("Method() = %q, want %q", odf.Method(), method)
			}

			curve, err := odf.Compute(spectra, sampleRate)
			if err != nil {
				t.Fatal(err)
			}
			if curve.Len() != spectra.Len() {
				t.Fatalf("curve has %d frames, spectra %d", curve.Len(), spectra.Len())
			}
			if !common.IsFinite(curve.Data) {
				t.Fatal("curve contains non-finite values")
			}
			if method != config.MethodHFC {
				for i, v := range curve.Data {
					if v < 0 {
						t.Fatalf("curve[%d] = %g < 0", i, v)
					}
				}
			}

			normalized := common.MinMaxNormalize(curve.Data)
			picker := NewPeakPicker(config.PeakPickerConfig{LocalWindowMax: 3, LocalWindowMean: 3, Delta: 0.1, MinimumDistance: 3})
			times := picker.Pick(common.WithData(curve, normalized)).OnsetTimes(sampleRate)
			if len(times) < 4 {
				t.Fatalf("expected at least 4 onsets, got %v", times)
			}

			// every click (0.125s + k*0.25s) should have a detected onset nearby
			for k := 0; k < 4; k++ {
				click := 0.125 + float64(k)*0.25
				found := false
				for _, ts := range times {
					if math.Abs(ts-click) < 0.06 {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("no onset near click at %.3fs, got %v", click, times)
				}
			}
		})
	}

	if _, err := NewDetectionFunction("chroma", cfg); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestDetectionFunctionRejectsEmpty(t *testing.T) {
	empty := common.NewSeries([][]complex128{}, 512, 256)
	if _, err := (&SpectralDifference{}).Compute(empty, 8000); err == nil {
		t.Error("expected error for empty spectra")
	}
	if _, err := (&LogFilteredSpectralFlux{MelBands: 10, LogLambda: 0}).Compute(common.NewSeries([][]complex128{make([]complex128, 8)}, 8, 4), 8000); err == nil {
		t.Error("expected error for non-positive lambda")
	}
}

func TestPeakPickerSingleSpike(t *testing.T) {
	values := []float64{0.01, 0.01, 0.01, 0.01, 1.0, 0.01, 0.01, 0.01, 0.01}
	picker := NewPeakPicker(config.PeakPickerConfig{LocalWindowMax: 1, LocalWindowMean: 1, Delta: 0, MinimumDistance: 1})

	mask := picker.Pick(common.NewSeries(values, 1024, 512))
	idx := mask.Indices()
	if len(idx) != 1 || idx[0] != 4 {
		t.Fatalf("peaks = %v, want [4]", idx)
	}

	// a single peak has no successor to compare with
	if _, err := mask.FirstStrongPeak(); !errors.Is(err, ErrNoStrongPeak) {
		t.Errorf("FirstStrongPeak err = %v, want ErrNoStrongPeak", err)
	}
}

func TestPeakPickerEndpointsExcluded(t *testing.T) {
	values := []float64{5, 0, 0, 0, 5}
	mask := NewPeakPicker(config.PeakPickerConfig{}).Pick(common.NewSeries(values, 4, 2))
	if mask.Count() != 0 {
		t.Errorf("endpoints must never be peaks, got %v", mask.Indices())
	}
}

func TestPeakPickerThresholds(t *testing.T) {
	values := []float64{0, 0.5, 0, 0.9, 0, 0.4, 0}

	tests := []struct {
		name string
		cfg  config.PeakPickerConfig
		want []int
	}{
		{"neighbors only", config.PeakPickerConfig{}, []int{1, 3, 5}},
		{"local max", config.PeakPickerConfig{LocalWindowMax: 2}, []int{3}},
		{"delta", config.PeakPickerConfig{LocalWindowMean: 1, Delta: 0.3}, []int{1, 3}},
		{"minimum distance", config.PeakPickerConfig{MinimumDistance: 2}, []int{1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPeakPicker(tt.cfg).Pick(common.NewSeries(values, 4, 2)).Indices()
			if len(got) != len(tt.want) {
				t.Fatalf("peaks = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("peaks = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPeakPickerMinimumDistanceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	for trial := 0; trial < 200; trial++ {
		values := make([]float64, 100)
		for i := range values {
			values[i] = rng.Float64()
		}
		minDist := 1 + rng.Intn(6)
		picker := NewPeakPicker(config.PeakPickerConfig{
			LocalWindowMax:  rng.Intn(3),
			LocalWindowMean: rng.Intn(5),
			MinimumDistance: minDist,
		})

		idx := picker.Pick(common.NewSeries(values, 8, 4)).Indices()
		for i := 1; i < len(idx); i++ {
			if idx[i]-idx[i-1] < minDist {
				t.Fatalf("trial %d: peaks %d and %d closer than %d", trial, idx[i-1], idx[i], minDist)
			}
		}
	}
}

func TestFirstStrongPeak(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		want    int
		wantErr bool
	}{
		// peaks at 1 (0.3), 3 (0.6), 5 (0.4): 0.6 > 0.4 at peak position 1
		{"rising edge skipped", []float64{0, 0.3, 0, 0.6, 0, 0.4, 0}, 1, false},
		{"first is strongest", []float64{0, 0.9, 0, 0.6, 0, 0.4, 0}, 0, false},
		{"monotonically increasing", []float64{0, 0.2, 0, 0.4, 0, 0.6, 0}, 0, true},
		{"no peaks", []float64{0, 0, 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := NewPeakPicker(config.PeakPickerConfig{}).Pick(common.NewSeries(tt.values, 4, 2))
			got, err := mask.FirstStrongPeak()
			if tt.wantErr {
				if !errors.Is(err, ErrNoStrongPeak) {
					t.Fatalf("err = %v, want ErrNoStrongPeak", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("FirstStrongPeak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOnsetTimes(t *testing.T) {
	values := []float64{0, 1, 0, 0, 1, 0}
	mask := NewPeakPicker(config.PeakPickerConfig{}).Pick(common.NewSeries(values, 1024, 441))

	times := mask.OnsetTimes(44100)
	want := []float64{2.5 * 0.01, 5.5 * 0.01}
	if len(times) != len(want) {
		t.Fatalf("times = %v, want %v", times, want)
	}
	for i := range want {
		if math.Abs(times[i]-want[i]) > 1e-12 {
			t.Errorf("times[%d] = %g, want %g", i, times[i], want[i])
		}
	}
}

func TestCombineIdempotent(t *testing.T) {
	onsets := []float64{0.1, 0.5, 0.52, 1.0, 1.8}
	src := Source{Score: 1.0, Onsets: onsets}

	got := Combine(0.5, 0.05, []Source{src, src})

	// 0.52 falls inside the 0.5 cluster
	want := []float64{0.1, 0.5, 1.0, 1.8}
	if len(got) != len(want) {
		t.Fatalf("combined = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("combined[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestCombineVoting(t *testing.T) {
	sources := []Source{
		{Score: 0.4, Onsets: []float64{1.00, 2.00, 3.00}},
		{Score: 0.4, Onsets: []float64{1.02, 2.30, 3.01}},
		{Score: 0.4, Onsets: []float64{0.99, 3.04}},
	}

	// unanimous: only clusters holding all three detectors pass 1.0
	got := Combine(1.0, 0.05, sources)
	if len(got) != 2 || got[0] != 0.99 || got[1] != 3.00 {
		t.Errorf("unanimous vote = %v, want [0.99 3]", got)
	}

	// majority of two
	got = Combine(0.7, 0.05, sources)
	if len(got) != 2 {
		t.Errorf("majority vote = %v, want 2 onsets", got)
	}

	// exactly equal to the required score is not enough
	got = Combine(0.4, 0.05, []Source{{Score: 0.4, Onsets: []float64{1}}})
	if len(got) != 0 {
		t.Errorf("score equal to requirement should not pass, got %v", got)
	}

	if got := Combine(1.0, 0.05, nil); len(got) != 0 {
		t.Errorf("no sources should give no onsets, got %v", got)
	}
}
