// Package analysis runs the onset, tempo and beat pipeline over decoded
// audio and scores it against ground truth.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/onset"
	"github.com/RyanBlaney/sonido-beat/algorithms/spectral"
	"github.com/RyanBlaney/sonido-beat/algorithms/temporal"
	"github.com/RyanBlaney/sonido-beat/config"
	"github.com/RyanBlaney/sonido-beat/evaluation"
	"github.com/RyanBlaney/sonido-beat/logging"
	"github.com/RyanBlaney/sonido-beat/transcode"
)

// ErrInvalidSignal is returned for empty or non-finite waveforms
var ErrInvalidSignal = errors.New("invalid signal")

// DetectorResult is the output of one configured onset detector
type DetectorResult struct {
	Method     config.OnsetMethod `json:"method"`
	WindowSize int                `json:"window_size"`
	HopSize    int                `json:"hop_size"`
	Onsets     []float64          `json:"onsets"`
}

// Result holds the analysis of one waveform. Errors lists recoverable stage
// failures (no tempo, no beat seed); the corresponding outputs are empty.
type Result struct {
	Onsets    []float64            `json:"onsets"`
	Beats     []float64            `json:"beats"`
	Tempo     []temporal.Candidate `json:"tempo"` // ascending BPM
	Detectors []DetectorResult     `json:"detectors"`
	Errors    []string             `json:"errors,omitempty"`
}

// FileResult is a Result for an audio file plus its ground-truth comparison.
// Comparisons are nil when the ground-truth file is absent.
type FileResult struct {
	*Result

	File       string              `json:"file"`
	SampleRate int                 `json:"sample_rate"`
	Duration   float64             `json:"duration_seconds"`
	OnsetScore *evaluation.Metrics `json:"onset_score"`
	BeatScore  *evaluation.Metrics `json:"beat_score"`
	TempoTruth *float64            `json:"tempo_truth,omitempty"`
	// TempoCorrect is set when a reference tempo exists and a tempo was estimated
	TempoCorrect *bool `json:"tempo_correct"`
}

type detector struct {
	config config.DetectorConfig
	odf    onset.DetectionFunction
	picker *onset.PeakPicker
}

// Analyzer runs the configured detectors, the ensemble vote, tempo
// estimation and beat tracking
type Analyzer struct {
	config     *config.AnalysisConfig
	stft       *spectral.STFT
	normalizer *common.Normalizer
	detectors  []detector
	tempo      *temporal.TempoEstimation
	beats      *temporal.BeatTracking
	decoder    *transcode.Decoder
	logger     logging.Logger
}

// NewAnalyzer validates cfg and builds the pipeline. A nil logger uses the
// global logger.
func NewAnalyzer(cfg *config.AnalysisConfig, logger logging.Logger) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	normalizer, err := common.NewNormalizer(cfg.Normalization)
	if err != nil {
		return nil, err
	}

	detectors := make([]detector, 0, len(cfg.Detectors))
	for _, dc := range cfg.Detectors {
		odf, err := onset.NewDetectionFunction(dc.Method, cfg)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, detector{
			config: dc,
			odf:    odf,
			picker: onset.NewPeakPicker(dc.PeakPicker),
		})
	}

	return &Analyzer{
		config:     cfg,
		stft:       spectral.NewSTFT(),
		normalizer: normalizer,
		detectors:  detectors,
		tempo:      temporal.NewTempoEstimation(cfg.SlowestBPM, cfg.FastestBPM),
		beats:      temporal.NewBeatTracking(),
		decoder:    transcode.NewDecoder(nil),
		logger:     logger.WithFields(logging.Fields{"component": "analyzer"}),
	}, nil
}

// Config returns the analyzer configuration
func (a *Analyzer) Config() *config.AnalysisConfig {
	return a.config
}

// Analyze runs the full pipeline over a mono waveform
func (a *Analyzer) Analyze(samples []float64, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty waveform: %w", ErrInvalidSignal)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d: %w", sampleRate, ErrInvalidSignal)
	}
	if !common.IsFinite(samples) {
		return nil, fmt.Errorf("non-finite samples: %w", ErrInvalidSignal)
	}

	result := &Result{
		Onsets: []float64{},
		Beats:  []float64{},
		Tempo:  []temporal.Candidate{},
	}

	// detectors sharing transform sizes share one spectrogram
	type frameKey struct{ window, hop int }
	spectrograms := make(map[frameKey]*onset.Spectra)

	curves := make([]*onset.Curve, len(a.detectors))
	masks := make([]*onset.PeakMask, len(a.detectors))
	sources := make([]onset.Source, len(a.detectors))

	for i, d := range a.detectors {
		key := frameKey{d.config.WindowSize, d.config.HopSize}
		spectra, ok := spectrograms[key]
		if !ok {
			var err error
			spectra, err = a.stft.Compute(samples, key.window, key.hop)
			if err != nil {
				return nil, fmt.Errorf("stft %d/%d: %w", key.window, key.hop, err)
			}
			spectrograms[key] = spectra
		}

		raw, err := d.odf.Compute(spectra, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%s detection function: %w", d.config.Method, err)
		}
		curves[i] = a.normalizer.NormalizeSeries(raw)
		masks[i] = d.picker.Pick(curves[i])

		times := masks[i].OnsetTimes(sampleRate)
		sources[i] = onset.Source{Score: d.config.Score, Onsets: times}
		result.Detectors = append(result.Detectors, DetectorResult{
			Method:     d.config.Method,
			WindowSize: d.config.WindowSize,
			HopSize:    d.config.HopSize,
			Onsets:     times,
		})

		a.logger.Debug("detector finished", logging.Fields{
			"method": d.config.Method,
			"frames": curves[i].Len(),
			"onsets": len(times),
		})
	}

	result.Onsets = onset.Combine(a.config.EnsembleRequiredScore, a.config.OnsetTolerance, sources)

	td := a.config.TempoDetector
	best, second, err := a.tempo.Estimate(curves[td], sampleRate)
	if err != nil {
		a.logger.Warn("no tempo estimate", logging.Fields{"error": err.Error()})
		result.Errors = append(result.Errors, fmt.Sprintf("tempo: %v", err))
		return result, nil
	}
	result.Tempo = []temporal.Candidate{best, second}
	sort.SliceStable(result.Tempo, func(i, j int) bool {
		return result.Tempo[i].BPM < result.Tempo[j].BPM
	})

	first, err := masks[td].FirstStrongPeak()
	if err != nil {
		a.logger.Warn("beat tracking skipped", logging.Fields{"error": err.Error()})
		result.Errors = append(result.Errors, fmt.Sprintf("beats: %v", err))
		return result, nil
	}

	beats, err := a.beats.Track(best.BPM, sources[td].Onsets, first)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("beats: %v", err))
		return result, nil
	}
	result.Beats = beats

	return result, nil
}

// AnalyzeFile decodes path, analyzes it and compares the output with any
// ground-truth files found next to it. A malformed ground-truth file fails
// the whole file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*FileResult, error) {
	logger := a.logger.WithFields(logging.Fields{"file": path})
	start := time.Now()

	audioData, err := a.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	result, err := a.Analyze(audioData.PCM, audioData.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}

	fileResult := &FileResult{
		Result:     result,
		File:       filepath.Base(path),
		SampleRate: audioData.SampleRate,
		Duration:   audioData.Duration.Seconds(),
	}
	if err := a.evaluate(fileResult, evaluation.PathsFor(path)); err != nil {
		return nil, err
	}

	logger.Info("file analyzed", logging.Fields{
		"onsets":  len(result.Onsets),
		"beats":   len(result.Beats),
		"elapsed": time.Since(start).String(),
	})

	return fileResult, nil
}

func (a *Analyzer) evaluate(fr *FileResult, paths evaluation.Paths) error {
	onsets, found, err := evaluation.ReadOnsets(paths.Onsets)
	if err != nil {
		return err
	}
	if found {
		m := evaluation.Evaluate(fr.Onsets, onsets, a.config.OnsetTolerance).Metrics()
		fr.OnsetScore = &m
	}

	beats, found, err := evaluation.ReadBeats(paths.Beats)
	if err != nil {
		return err
	}
	if found {
		m := evaluation.Evaluate(fr.Beats, beats, a.config.BeatTolerance).Metrics()
		fr.BeatScore = &m
	}

	bpm, found, err := evaluation.ReadTempo(paths.Tempo)
	if err != nil {
		return err
	}
	if found {
		fr.TempoTruth = &bpm
		if len(fr.Tempo) > 0 {
			bpms := make([]float64, len(fr.Tempo))
			for i, c := range fr.Tempo {
				bpms[i] = c.BPM
			}
			correct := evaluation.TempoMatches(bpm, a.config.TempoDeviation, bpms...)
			fr.TempoCorrect = &correct
		}
	}

	return nil
}
