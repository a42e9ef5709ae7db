// Package audio provides the PCM sample math shared by the memocut editing
// engine: format descriptors, int16 little-endian sample conversion,
// level measurement (RMS, dBFS), channel layout conversion, and linear
// resampling used when importing recordings into the library's canonical
// format.
//
// All PCM in this package is 16-bit little-endian interleaved, the only
// sample layout the engine edits. A "frame" is one sample per channel at a
// single time instant.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Valid reports whether the format has a positive sample rate and a channel
// count the engine can edit (mono or stereo).
func (f Format) Valid() bool {
	return f.SampleRate > 0 && (f.Channels == 1 || f.Channels == 2)
}

// BytesPerFrame returns the size of one interleaved frame in bytes.
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// FrameForTime converts a time position in seconds to a frame index using
// round-to-nearest. Negative times clamp to frame zero.
func (f Format) FrameForTime(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	return int64(math.Round(seconds * float64(f.SampleRate)))
}

// TimeForFrame converts a frame index back to seconds.
func (f Format) TimeForFrame(frame int64) float64 {
	return float64(frame) / float64(f.SampleRate)
}

// DurationForFrames returns the wall-clock duration of n frames.
func (f Format) DurationForFrames(n int64) time.Duration {
	return time.Duration(float64(n) / float64(f.SampleRate) * float64(time.Second))
}

// String returns a human-readable description, e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
