package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/windowing"
	"github.com/RyanBlaney/sonido-beat/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// Window tapers one frame in place
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Compute transforms signal with a Hamming taper. Frames start at 0 and
// advance by hopSize; the last frame is zero-padded on the right so the
// tail of the signal is always covered. Each spectrum holds all windowSize
// complex bins.
func (s *STFT) Compute(signal []float64, windowSize, hopSize int) (*common.Series[[]complex128], error) {
	return s.ComputeWithWindow(signal, windowSize, hopSize, windowing.NewHamming(windowSize))
}

// ComputeWithWindow is Compute with a caller-supplied taper (nil for rectangular)
func (s *STFT) ComputeWithWindow(signal []float64, windowSize, hopSize int, window Window) (*common.Series[[]complex128], error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if hopSize > windowSize {
		return nil, fmt.Errorf("hop size (%d) exceeds window size (%d)", hopSize, windowSize)
	}

	numFrames, err := common.ExpectedFrames(len(signal), windowSize, hopSize)
	if err != nil {
		return nil, err
	}

	spectra := make([][]complex128, numFrames)

	numWorkers := s.getOptimalWorkerCount(numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				end := min(start+windowSize, len(signal))

				n := copy(frameBuffer, signal[start:end])
				clear(frameBuffer[n:])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errs <- fmt.Errorf("frame %d: %w", frameIdx, err)
						return
					}
				}

				spectra[frameIdx] = s.fft.Compute(frameBuffer)
			}
		}()
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}

	s.logger.Debug("stft computed", logging.Fields{
		"frames":      numFrames,
		"window_size": windowSize,
		"hop_size":    hopSize,
		"workers":     numWorkers,
	})

	return common.NewSeries(spectra, windowSize, hopSize), nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
