package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-beat/evaluation"
	"github.com/RyanBlaney/sonido-beat/logging"
	"github.com/RyanBlaney/sonido-beat/transcode"
)

// AggregateMetrics averages one metric kind over the files that have
// ground truth. A mean is nil when no file defines that metric.
type AggregateMetrics struct {
	Files     int      `json:"files"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	FMeasure  *float64 `json:"f_measure"`
}

// Summary aggregates a batch
type Summary struct {
	Files          int              `json:"files"`
	Completed      int              `json:"completed"`
	Failed         int              `json:"failed"`
	Onsets         AggregateMetrics `json:"onsets"`
	Beats          AggregateMetrics `json:"beats"`
	TempoEvaluated int              `json:"tempo_evaluated"`
	TempoAccuracy  *float64         `json:"tempo_accuracy"`
	Elapsed        string           `json:"elapsed"`
}

// BatchReport holds every file's result keyed by its path, the error of
// every failed file and the batch summary
type BatchReport struct {
	Results  map[string]*FileResult `json:"results"`
	Failures map[string]string      `json:"failures,omitempty"`
	Summary  Summary                `json:"summary"`
}

// BatchRunner analyzes files on a bounded pool of workers
type BatchRunner struct {
	analyzer *Analyzer
	workers  int

	processed atomic.Int64
	completed atomic.Int64

	logger logging.Logger
}

// NewBatchRunner creates a runner with the given pool size; workers <= 0
// uses one worker per CPU
func NewBatchRunner(analyzer *Analyzer, workers int) *BatchRunner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchRunner{
		analyzer: analyzer,
		workers:  workers,
		logger:   analyzer.logger.WithFields(logging.Fields{"component": "batch_runner"}),
	}
}

// Progress returns how many files have been started and how many finished
// successfully
func (br *BatchRunner) Progress() (processed, completed int64) {
	return br.processed.Load(), br.completed.Load()
}

// Run analyzes every path and waits for all workers. A failing file is
// logged and recorded in Failures; it never stops the batch. Once ctx is
// done no new files are started.
func (br *BatchRunner) Run(ctx context.Context, paths []string) *BatchReport {
	start := time.Now()
	report := &BatchReport{
		Results:  make(map[string]*FileResult, len(paths)),
		Failures: make(map[string]string),
	}

	var mu sync.Mutex
	jobs := make(chan string)
	var wg sync.WaitGroup

	workers := min(br.workers, max(1, len(paths)))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				br.processed.Add(1)

				result, err := br.analyzer.AnalyzeFile(ctx, path)

				mu.Lock()
				if err != nil {
					report.Failures[path] = err.Error()
				} else {
					report.Results[path] = result
				}
				mu.Unlock()

				if err != nil {
					br.logger.Error(err, "file failed", logging.Fields{"file": path})
					continue
				}
				br.completed.Add(1)
			}
		}()
	}

	for i, path := range paths {
		select {
		case jobs <- path:
			continue
		case <-ctx.Done():
		}
		mu.Lock()
		for _, skipped := range paths[i:] {
			report.Failures[skipped] = ctx.Err().Error()
		}
		mu.Unlock()
		break
	}
	close(jobs)
	wg.Wait()

	report.Summary = summarize(report, len(paths))
	report.Summary.Elapsed = time.Since(start).String()

	br.logger.Info("batch finished", logging.Fields{
		"files":     report.Summary.Files,
		"completed": report.Summary.Completed,
		"failed":    report.Summary.Failed,
		"elapsed":   report.Summary.Elapsed,
	})

	return report
}

func summarize(report *BatchReport, files int) Summary {
	s := Summary{
		Files:     files,
		Completed: len(report.Results),
		Failed:    len(report.Failures),
	}

	var onsets, beats []*evaluation.Metrics
	correct := 0
	for _, r := range report.Results {
		if r.OnsetScore != nil {
			onsets = append(onsets, r.OnsetScore)
		}
		if r.BeatScore != nil {
			beats = append(beats, r.BeatScore)
		}
		if r.TempoCorrect != nil {
			s.TempoEvaluated++
			if *r.TempoCorrect {
				correct++
			}
		}
	}

	s.Onsets = aggregate(onsets)
	s.Beats = aggregate(beats)
	if s.TempoEvaluated > 0 {
		accuracy := float64(correct) / float64(s.TempoEvaluated)
		s.TempoAccuracy = &accuracy
	}

	return s
}

func aggregate(metrics []*evaluation.Metrics) AggregateMetrics {
	agg := AggregateMetrics{Files: len(metrics)}
	agg.Precision = meanDefined(metrics, func(m *evaluation.Metrics) *float64 { return m.Precision })
	agg.Recall = meanDefined(metrics, func(m *evaluation.Metrics) *float64 { return m.Recall })
	agg.FMeasure = meanDefined(metrics, func(m *evaluation.Metrics) *float64 { return m.FMeasure })
	return agg
}

// meanDefined averages the non-nil values picked from metrics
func meanDefined(metrics []*evaluation.Metrics, pick func(*evaluation.Metrics) *float64) *float64 {
	var values []float64
	for _, m := range metrics {
		if v := pick(m); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	mean := stat.Mean(values, nil)
	return &mean
}

// FindAudioFiles walks dir and returns every WAV and MP3 file, sorted
func FindAudioFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, err := transcode.FormatFromPath(path); err == nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}
