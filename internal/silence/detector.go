package silence

import (
	"fmt"

	"github.com/memocut/memocut/pkg/audio"
)

// hysteresisDB is the gap between the silence-enter and silence-exit
// thresholds. A region goes silent at level <= threshold and comes back at
// level > threshold + hysteresisDB, so level flicker right at the boundary
// cannot fragment one silent passage into many sub-minimum ranges.
const hysteresisDB = 5.0

// Detect scans the whole recording in 20 ms windows and returns every
// silent run of at least minDuration seconds as a sorted, non-overlapping
// [Range] list. thresholdDB is the enter threshold in dBFS.
func Detect(src FrameSource, thresholdDB, minDuration float64) ([]Range, error) {
	format := src.Format()
	windowFrames := int64(format.SampleRate * windowMs / 1000)
	if windowFrames <= 0 {
		return nil, fmt.Errorf("silence: detect: bad sample rate %d", format.SampleRate)
	}
	total := src.TotalFrames()

	var ranges []Range
	silentStart := int64(-1)

	flush := func(endFrame int64) {
		if silentStart < 0 {
			return
		}
		r := Range{
			Start: format.TimeForFrame(silentStart),
			End:   format.TimeForFrame(endFrame),
		}
		if r.Duration() >= minDuration {
			ranges = append(ranges, r)
		}
		silentStart = -1
	}

	for at := int64(0); at < total; at += windowFrames {
		count := windowFrames
		if at+count > total {
			count = total - at
		}
		samples, err := src.ReadFrames(at, count)
		if err != nil {
			return nil, fmt.Errorf("silence: detect at frame %d: %w", at, err)
		}
		if len(samples) == 0 {
			break
		}

		level := audio.WindowLevelDB(samples, format.Channels)
		switch {
		case level <= thresholdDB:
			if silentStart < 0 {
				silentStart = at
			}
		case level > thresholdDB+hysteresisDB:
			flush(at)
		}
		// Levels inside the hysteresis band keep the current state.
	}
	flush(total)

	return ranges, nil
}
