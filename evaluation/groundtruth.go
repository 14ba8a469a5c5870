// Package evaluation scores detected onsets, beats and tempo against
// ground-truth annotation files.
package evaluation

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedGroundTruth is returned when a ground-truth line is not a number.
// The whole file is rejected; there is no partial parse.
var ErrMalformedGroundTruth = errors.New("malformed ground truth")

// Ground-truth file suffixes, appended to the audio path without its extension
const (
	OnsetsSuffix = ".onsets.gt"
	BeatsSuffix  = ".beats.gt"
	TempoSuffix  = ".tempo.gt"
)

// Paths locates the ground-truth files belonging to an audio file
type Paths struct {
	Onsets string
	Beats  string
	Tempo  string
}

// PathsFor returns the ground-truth paths next to audioPath,
// e.g. song.wav -> song.onsets.gt
func PathsFor(audioPath string) Paths {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	return Paths{
		Onsets: base + OnsetsSuffix,
		Beats:  base + BeatsSuffix,
		Tempo:  base + TempoSuffix,
	}
}

// ReadOnsets reads one onset time in seconds per line. found is false when
// the file does not exist.
func ReadOnsets(path string) ([]float64, bool, error) {
	return readColumn(path, false)
}

// ReadBeats reads beat times from the first whitespace-separated token of
// each line; further tokens (bar positions and the like) are ignored.
func ReadBeats(path string) ([]float64, bool, error) {
	return readColumn(path, true)
}

// ReadTempo reads the reference tempo in BPM from the first token of the file
func ReadTempo(path string) (float64, bool, error) {
	values, found, err := readColumn(path, true)
	if err != nil || !found {
		return 0, found, err
	}
	if len(values) == 0 {
		return 0, true, fmt.Errorf("%s: no tempo value: %w", path, ErrMalformedGroundTruth)
	}
	return values[0], true, nil
}

func readColumn(path string, firstToken bool) ([]float64, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open ground truth: %w", err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if firstToken {
			text = strings.Fields(text)[0]
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, true, fmt.Errorf("%s:%d: %q: %w", path, line, text, ErrMalformedGroundTruth)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("read ground truth %s: %w", path, err)
	}

	return values, true, nil
}
