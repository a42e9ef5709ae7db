// Package silence implements the silence analysis side of the memocut
// engine: ambient noise-floor estimation, threshold derivation, and
// hysteresis-based detection of silent regions in a recording.
//
// Detection output is a sorted, pairwise non-overlapping list of [Range]
// values. Both the segment editor (batch removal) and the playback skip
// controller (real-time lookup) consume that list and rely on its ordering
// invariant, so anything that persists and reloads ranges must re-validate
// with [ValidRanges].
package silence

import (
	"errors"
	"fmt"
)

// Range is a half-open interval [Start, End) of below-threshold audio, in
// seconds from the start of the recording. Immutable once produced.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the length of the range in seconds.
func (r Range) Duration() float64 { return r.End - r.Start }

// ValidRanges reports whether ranges are individually well-formed
// (Start < End), sorted ascending by Start, and pairwise non-overlapping.
func ValidRanges(ranges []Range) bool {
	for i, r := range ranges {
		if r.Start >= r.End {
			return false
		}
		if i > 0 && ranges[i-1].End > r.Start {
			return false
		}
	}
	return true
}

// TotalDuration sums the durations of all ranges.
func TotalDuration(ranges []Range) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}

// Threshold bounds accepted from callers, in dBFS.
const (
	MinThresholdDB = -60.0
	MaxThresholdDB = -20.0

	// MinSilenceDuration bounds, in seconds.
	MinMinSilenceDuration = 0.1
	MaxMinSilenceDuration = 1.0
)

// ErrInvalidSettings is returned by [Settings.Validate] for out-of-range
// values.
var ErrInvalidSettings = errors.New("silence: invalid settings")

// Settings holds the tunables for silence detection and skip-silence
// playback. Mutating settings invalidates previously computed ranges; the
// owner must trigger re-analysis explicitly.
type Settings struct {
	// ThresholdDB is the level at or below which audio counts as silent.
	// Ignored when AutoThreshold is set.
	ThresholdDB float64 `yaml:"threshold_db" json:"threshold_db"`

	// AutoThreshold derives the threshold from the recording's noise floor
	// instead of ThresholdDB.
	AutoThreshold bool `yaml:"auto_threshold" json:"auto_threshold"`

	// MinSilenceDuration is the shortest silent run, in seconds, that is
	// reported as a range.
	MinSilenceDuration float64 `yaml:"min_silence_duration" json:"min_silence_duration"`

	// EnableFade applies a short gain ramp at each splice point when silent
	// ranges are removed, avoiding clicks.
	EnableFade bool `yaml:"enable_fade" json:"enable_fade"`

	// FadeDuration is the splice fade length in seconds.
	FadeDuration float64 `yaml:"fade_duration" json:"fade_duration"`
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		ThresholdDB:        -40,
		AutoThreshold:      true,
		MinSilenceDuration: 0.5,
		EnableFade:         true,
		FadeDuration:       0.02,
	}
}

// Validate rejects settings outside the documented ranges.
func (s Settings) Validate() error {
	if s.ThresholdDB < MinThresholdDB || s.ThresholdDB > MaxThresholdDB {
		return fmt.Errorf("%w: threshold_db %.1f outside [%.0f, %.0f]",
			ErrInvalidSettings, s.ThresholdDB, MinThresholdDB, MaxThresholdDB)
	}
	if s.MinSilenceDuration < MinMinSilenceDuration || s.MinSilenceDuration > MaxMinSilenceDuration {
		return fmt.Errorf("%w: min_silence_duration %.2f outside [%.1f, %.1f]",
			ErrInvalidSettings, s.MinSilenceDuration, MinMinSilenceDuration, MaxMinSilenceDuration)
	}
	if s.FadeDuration < 0 {
		return fmt.Errorf("%w: fade_duration %.3f is negative", ErrInvalidSettings, s.FadeDuration)
	}
	return nil
}

// Clamp returns a copy of s with every field forced into its valid range.
func (s Settings) Clamp() Settings {
	out := s
	out.ThresholdDB = min(max(out.ThresholdDB, MinThresholdDB), MaxThresholdDB)
	out.MinSilenceDuration = min(max(out.MinSilenceDuration, MinMinSilenceDuration), MaxMinSilenceDuration)
	if out.FadeDuration < 0 {
		out.FadeDuration = 0
	}
	return out
}
