package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
)

// OnsetMethod names one of the onset detection functions
type OnsetMethod string

const (
	MethodHFC                OnsetMethod = "hfc"
	MethodSpectralDifference OnsetMethod = "sd"
	MethodLFSF               OnsetMethod = "lfsf"
)

// NormalizationMethod selects how detection curves are scaled before peak picking
type NormalizationMethod string

const (
	NormalizeMinMax  NormalizationMethod = "minmax"  // (x - min) / (max - min)
	NormalizeMeanMax NormalizationMethod = "meanmax" // (x - mean) / max
)

// PeakPickerConfig holds the adaptive peak picking parameters of one detector.
// All window sizes are in frames.
type PeakPickerConfig struct {
	LocalWindowMax  int     `json:"local_window_max"`
	LocalWindowMean int     `json:"local_window_mean"`
	Delta           float64 `json:"delta"`
	MinimumDistance int     `json:"minimum_distance"`
}

// DetectorConfig describes one onset detector run: the ODF, its transform
// sizes, its peak picker and its weight in the ensemble vote.
type DetectorConfig struct {
	Method     OnsetMethod      `json:"method"`
	WindowSize int              `json:"window_size"`
	HopSize    int              `json:"hop_size"`
	Score      float64          `json:"score"`
	PeakPicker PeakPickerConfig `json:"peak_picker"`
}

// AnalysisConfig is the single configuration passed to every pipeline stage
type AnalysisConfig struct {
	// Tempo search range
	SlowestBPM float64 `json:"slowest_bpm"`
	FastestBPM float64 `json:"fastest_bpm"`

	// Validation windows (seconds) and allowed relative tempo error
	OnsetTolerance float64 `json:"onset_tolerance"`
	BeatTolerance  float64 `json:"beat_tolerance"`
	TempoDeviation float64 `json:"tempo_deviation"`

	// Ensemble
	EnsembleRequiredScore float64 `json:"ensemble_required_score"`

	// LFSF
	MelBands  int     `json:"mel_bands"`
	LogLambda float64 `json:"log_lambda"`

	Normalization NormalizationMethod `json:"normalization"`

	Detectors []DetectorConfig `json:"detectors"`
	// TempoDetector is the index into Detectors whose curve and peaks drive
	// tempo estimation and beat tracking
	TempoDetector int `json:"tempo_detector"`

	Workers int `json:"workers"`
}

// DefaultAnalysisConfig returns the tuned defaults
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		SlowestBPM:            60.0,
		FastestBPM:            200.0,
		OnsetTolerance:        50e-3,
		BeatTolerance:         70e-3,
		TempoDeviation:        0.08,
		EnsembleRequiredScore: 1.0,
		MelBands:              128,
		LogLambda:             0.7,
		Normalization:         NormalizeMinMax,
		Detectors: []DetectorConfig{
			{
				Method:     MethodLFSF,
				WindowSize: 2048,
				HopSize:    441,
				Score:      0.4,
				PeakPicker: PeakPickerConfig{LocalWindowMax: 3, LocalWindowMean: 3, Delta: 0.05, MinimumDistance: 3},
			},
			{
				Method:     MethodSpectralDifference,
				WindowSize: 1024,
				HopSize:    512,
				Score:      0.4,
				PeakPicker: PeakPickerConfig{LocalWindowMax: 2, LocalWindowMean: 5, Delta: 0.05, MinimumDistance: 3},
			},
			{
				Method:     MethodHFC,
				WindowSize: 1024,
				HopSize:    512,
				Score:      0.4,
				PeakPicker: PeakPickerConfig{LocalWindowMax: 2, LocalWindowMean: 5, Delta: 0.05, MinimumDistance: 3},
			},
		},
		TempoDetector: 0,
		Workers:       runtime.NumCPU(),
	}
}

// Load reads a JSON config file. Keys missing from the file keep their defaults.
func Load(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks ranges and cross-field consistency
func (c *AnalysisConfig) Validate() error {
	var errs []error

	if c.SlowestBPM <= 0 || c.FastestBPM <= 0 {
		errs = append(errs, fmt.Errorf("bpm range must be positive, got %g..%g", c.SlowestBPM, c.FastestBPM))
	} else if c.SlowestBPM >= c.FastestBPM {
		errs = append(errs, fmt.Errorf("slowest_bpm (%g) must be below fastest_bpm (%g)", c.SlowestBPM, c.FastestBPM))
	}
	if c.OnsetTolerance <= 0 || c.BeatTolerance <= 0 {
		errs = append(errs, errors.New("tolerance windows must be positive"))
	}
	if c.TempoDeviation < 0 {
		errs = append(errs, errors.New("tempo_deviation must not be negative"))
	}
	if c.MelBands <= 0 {
		errs = append(errs, fmt.Errorf("mel_bands must be positive, got %d", c.MelBands))
	}
	if c.LogLambda <= 0 {
		errs = append(errs, fmt.Errorf("log_lambda must be positive, got %g", c.LogLambda))
	}
	switch c.Normalization {
	case NormalizeMinMax, NormalizeMeanMax:
	default:
		errs = append(errs, fmt.Errorf("unknown normalization %q", c.Normalization))
	}
	if len(c.Detectors) == 0 {
		errs = append(errs, errors.New("at least one detector is required"))
	}
	for i, d := range c.Detectors {
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("detectors[%d]: %w", i, err))
		}
	}
	if c.TempoDetector < 0 || c.TempoDetector >= len(c.Detectors) {
		errs = append(errs, fmt.Errorf("tempo_detector %d out of range", c.TempoDetector))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}

	return errors.Join(errs...)
}

// Validate checks a single detector configuration
func (d DetectorConfig) Validate() error {
	switch d.Method {
	case MethodHFC, MethodSpectralDifference, MethodLFSF:
	default:
		return fmt.Errorf("unknown onset method %q", d.Method)
	}
	if d.WindowSize <= 0 || d.HopSize <= 0 {
		return fmt.Errorf("window_size and hop_size must be positive")
	}
	if d.HopSize > d.WindowSize {
		return fmt.Errorf("hop_size (%d) exceeds window_size (%d)", d.HopSize, d.WindowSize)
	}
	if d.Score < 0 {
		return fmt.Errorf("score must not be negative")
	}
	p := d.PeakPicker
	if p.LocalWindowMax < 0 || p.LocalWindowMean < 0 || p.MinimumDistance < 0 {
		return fmt.Errorf("peak picker windows must not be negative")
	}
	return nil
}
