package common

import "fmt"

// Series is a sequence of per-frame values produced by a windowed analysis.
// Every frame of one Series was computed with the same window and hop size,
// so frame i starts at sample i*HopSize.
type Series[T any] struct {
	Data       []T `json:"data"`
	WindowSize int `json:"window_size"`
	HopSize    int `json:"hop_size"`
}

// NewSeries wraps data with its window and hop size
func NewSeries[T any](data []T, windowSize, hopSize int) *Series[T] {
	return &Series[T]{
		Data:       data,
		WindowSize: windowSize,
		HopSize:    hopSize,
	}
}

// Len returns the number of frames
func (s *Series[T]) Len() int {
	return len(s.Data)
}

// WithData returns a new series carrying data under the same window and hop size
func WithData[T, U any](s *Series[T], data []U) *Series[U] {
	return NewSeries(data, s.WindowSize, s.HopSize)
}

// MapSeries applies fn to every frame, keeping window and hop size
func MapSeries[T, U any](s *Series[T], fn func(T) U) *Series[U] {
	out := make([]U, len(s.Data))
	for i, v := range s.Data {
		out[i] = fn(v)
	}
	return WithData(s, out)
}

// FrameTime converts a frame index to seconds. The 1.5 frame offset places
// the onset at the window center plus the one-frame lag of difference-based
// detection functions.
func FrameTime(frame, hopSize, sampleRate int) float64 {
	return (float64(frame) + 1.5) * float64(hopSize) / float64(sampleRate)
}

// FramePeriod is the time in seconds between consecutive frames
func FramePeriod(hopSize, sampleRate int) float64 {
	return float64(hopSize) / float64(sampleRate)
}

// ExpectedFrames returns ceil((n-w)/h)+1, the number of frames a zero-padded
// STFT of n samples produces. Signals shorter than one window yield one frame.
func ExpectedFrames(n, windowSize, hopSize int) (int, error) {
	if windowSize <= 0 || hopSize <= 0 {
		return 0, fmt.Errorf("window size (%d) and hop size (%d) must be positive", windowSize, hopSize)
	}
	if n <= windowSize {
		return 1, nil
	}
	return (n-windowSize+hopSize-1)/hopSize + 1, nil
}
