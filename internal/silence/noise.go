package silence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/memocut/memocut/pkg/audio"
)

// FrameSource is the read-side capability the analysis passes need. It is
// satisfied by *wave.Reader; tests supply synthetic implementations.
type FrameSource interface {
	Format() audio.Format
	TotalFrames() int64
	ReadFrames(at, count int64) ([]int16, error)
}

const (
	// windowMs is the analysis window length shared by the estimator and the
	// detector, so both see the same level series.
	windowMs = 20

	// noiseFloorSpanSeconds bounds how much leading audio the estimator scans.
	noiseFloorSpanSeconds = 10
)

// ErrUnavailable is returned when no noise-floor estimate can be produced,
// typically because the recording is shorter than one analysis window.
var ErrUnavailable = errors.New("silence: noise floor unavailable")

// EstimateNoiseFloor estimates the ambient noise level of a recording in
// dBFS by scanning at most the first ten seconds in 20 ms windows and
// taking the 10th-percentile window level. The percentile (rather than the
// minimum) keeps the estimate robust against isolated digital-silence
// glitches while staying biased toward the quietest part of the room tone.
func EstimateNoiseFloor(src FrameSource) (float64, error) {
	format := src.Format()
	windowFrames := int64(format.SampleRate * windowMs / 1000)
	if windowFrames <= 0 {
		return 0, fmt.Errorf("%w: bad sample rate %d", ErrUnavailable, format.SampleRate)
	}

	total := src.TotalFrames()
	if total < windowFrames {
		return 0, fmt.Errorf("%w: recording shorter than one %dms window", ErrUnavailable, windowMs)
	}
	span := int64(noiseFloorSpanSeconds * format.SampleRate)
	if span > total {
		span = total
	}

	levels := make([]float64, 0, span/windowFrames)
	for at := int64(0); at+windowFrames <= span; at += windowFrames {
		samples, err := src.ReadFrames(at, windowFrames)
		if err != nil {
			return 0, fmt.Errorf("silence: noise floor scan at frame %d: %w", at, err)
		}
		levels = append(levels, audio.WindowLevelDB(samples, format.Channels))
	}
	if len(levels) == 0 {
		return 0, ErrUnavailable
	}

	sort.Float64s(levels)
	idx := len(levels) / 10
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return levels[idx], nil
}

// Derived-threshold policy: headroom above the noise floor, clamped to a
// usable band.
const (
	thresholdHeadroomDB = 15.0
	derivedFloorDB      = -70.0
	derivedCeilingDB    = -20.0
)

// DeriveThreshold turns a noise-floor estimate into a silence threshold.
func DeriveThreshold(noiseFloorDB float64) float64 {
	return min(max(noiseFloorDB+thresholdHeadroomDB, derivedFloorDB), derivedCeilingDB)
}
