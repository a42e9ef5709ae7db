// Package skip implements the real-time skip-silence playback controller.
//
// The controller sits inside the playback position-update loop: every tick
// the player calls [Controller.ShouldSkip] with the current position, and
// the controller answers with the position to seek to when the play head is
// inside a known silent range. The hot path is a binary search over the
// analysed range list with no allocation, so it can run tens of times per
// second without disturbing playback.
package skip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memocut/memocut/internal/observe"
	"github.com/memocut/memocut/internal/silence"
)

const (
	// debouncePosition suppresses a re-trigger when the play head is still
	// within this many seconds of the last seek target.
	debouncePosition = 0.1

	// debounceWindow is the wall-clock window paired with debouncePosition.
	// A seek that lands inside both windows would otherwise immediately
	// re-trigger and thrash the player.
	debounceWindow = 500 * time.Millisecond

	// endTolerance keeps a skip from firing within the last few
	// milliseconds of a silent range, where the natural end of the silence
	// is about to resume audio anyway.
	endTolerance = 0.05
)

// Analyzer produces silence ranges for a file. Implemented by the library
// layer; tests supply stubs.
type Analyzer func(ctx context.Context, path string, settings silence.Settings) ([]silence.Range, error)

// Controller decides, during playback, whether to jump forward past a
// silent region. One Controller serves one playback session; methods are
// safe for concurrent use between the playback tick goroutine and the
// control surface that flips settings.
type Controller struct {
	analyze Analyzer
	metrics *observe.Metrics
	now     func() time.Time

	mu        sync.Mutex
	enabled   bool
	analyzing bool
	analyzed  bool
	file      string
	settings  silence.Settings
	ranges    []silence.Range

	// Debounce state, reset whenever the playback source changes.
	lastSeekTime      float64
	lastSeekTimestamp time.Time
}

// NewController creates a Controller that uses analyze to (re)compute
// silence ranges. A nil metrics uses the process-wide default.
func NewController(analyze Analyzer, m *observe.Metrics) *Controller {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Controller{
		analyze:  analyze,
		metrics:  m,
		now:      time.Now,
		settings: silence.DefaultSettings(),
	}
}

// SetEnabled turns skip-silence playback on or off. Enabling with no
// analysis available kicks one off for the current file.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	needAnalysis := enabled && !c.analyzed && !c.analyzing && c.file != ""
	file, settings := c.file, c.settings
	c.mu.Unlock()

	if needAnalysis {
		c.runAnalysis(ctx, file, settings, false)
	}
}

// Analyze computes silence ranges for path with the given settings. It is
// idempotent: if path and settings match a completed analysis, the cached
// result is kept and no work is done, even when that result holds zero
// ranges.
func (c *Controller) Analyze(ctx context.Context, path string, settings silence.Settings) error {
	c.mu.Lock()
	if c.file == path && c.settings == settings && (c.analyzed || c.analyzing) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.runAnalysis(ctx, path, settings, false)
}

// Reanalyze forces recomputation for the current file, discarding any
// cached ranges first.
func (c *Controller) Reanalyze(ctx context.Context) error {
	c.mu.Lock()
	file, settings := c.file, c.settings
	c.mu.Unlock()
	if file == "" {
		return fmt.Errorf("skip: no file to reanalyze")
	}
	return c.runAnalysis(ctx, file, settings, true)
}

func (c *Controller) runAnalysis(ctx context.Context, path string, settings silence.Settings, force bool) error {
	c.mu.Lock()
	if c.analyzing {
		c.mu.Unlock()
		return nil
	}
	c.analyzing = true
	c.analyzed = false
	c.file = path
	c.settings = settings
	if force {
		c.ranges = nil
	}
	c.mu.Unlock()

	start := c.now()
	ranges, err := c.analyze(ctx, path, settings)

	c.mu.Lock()
	c.analyzing = false
	if err != nil || !silence.ValidRanges(ranges) {
		// Failed analysis degrades to "skip inert", never breaks playback.
		c.ranges = nil
	} else {
		c.ranges = ranges
		c.analyzed = true
	}
	c.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordAnalysis(ctx, c.now().Sub(start).Seconds(), len(ranges), status)
	return err
}

// Reset clears all state if path differs from the currently analysed file.
// Re-opening the same item is a no-op so results survive across it. An
// empty path always clears.
func (c *Controller) Reset(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if path != "" && path == c.file {
		return
	}
	c.file = path
	c.ranges = nil
	c.analyzing = false
	c.analyzed = false
	c.lastSeekTime = 0
	c.lastSeekTimestamp = time.Time{}
}

// Ranges returns a snapshot of the current silence ranges.
func (c *Controller) Ranges() []silence.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]silence.Range, len(c.ranges))
	copy(out, c.ranges)
	return out
}

// Analyzing reports whether an analysis pass is in flight.
func (c *Controller) Analyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzing
}

// ShouldSkip reports whether playback at currentTime (seconds) should jump
// forward, and to where. Returns ok=false while skip is disabled, analysis
// is in flight, the range list is empty, or the debounce window is active.
func (c *Controller) ShouldSkip(currentTime float64) (target float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.analyzing || len(c.ranges) == 0 {
		return 0, false
	}

	// Debounce: a seek that just landed near the last target must not
	// immediately re-trigger.
	if abs(currentTime-c.lastSeekTime) < debouncePosition &&
		c.now().Sub(c.lastSeekTimestamp) < debounceWindow {
		return 0, false
	}

	// Upper bound minus one: last range whose Start <= currentTime. Manual
	// binary search keeps the per-tick path free of allocation.
	lo, hi := 0, len(c.ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.ranges[mid].Start > currentTime {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	i := lo - 1
	if i < 0 {
		return 0, false
	}

	r := c.ranges[i]
	if currentTime < r.Start || currentTime >= r.End-endTolerance {
		return 0, false
	}

	c.lastSeekTime = r.End
	c.lastSeekTimestamp = c.now()
	c.metrics.SkipJumps.Add(context.Background(), 1)
	return r.End, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
