// Package timeline implements the zoomable waveform timeline model: the
// bidirectional mapping between audio time and an on-screen coordinate
// range, plus the quantization policy that snaps interactive edits to a
// resolution appropriate for the current zoom level.
//
// Timeline is a plain value type owned by a single editing session. All
// mutation goes through explicit methods that compute and assign the
// clamped result once; there are no change-notification hooks, so bounded
// state can never trigger a re-entrant update cascade in a reactive host.
package timeline

import "math"

// MaxZoom is the largest allowed zoom scale.
const MaxZoom = 100.0

// zoomEpsilon is the smallest scale change worth applying; smaller deltas
// are dropped to avoid redundant downstream recomputation.
const zoomEpsilon = 1e-3

// Timeline maps a recording of fixed duration onto a zoomable visible
// window. Not safe for concurrent writers; one editing session owns one
// Timeline.
type Timeline struct {
	duration         float64
	zoomScale        float64
	visibleStartTime float64
}

// New creates a Timeline showing the entire duration at scale 1.
func New(duration float64) *Timeline {
	if duration < 0 {
		duration = 0
	}
	return &Timeline{duration: duration, zoomScale: 1}
}

// Duration returns the fixed total duration in seconds.
func (tl *Timeline) Duration() float64 { return tl.duration }

// ZoomScale returns the current zoom scale in [1, MaxZoom].
func (tl *Timeline) ZoomScale() float64 { return tl.zoomScale }

// VisibleStartTime returns the left edge of the visible window.
func (tl *Timeline) VisibleStartTime() float64 { return tl.visibleStartTime }

// VisibleDuration returns how much time the visible window spans.
func (tl *Timeline) VisibleDuration() float64 { return tl.duration / tl.zoomScale }

// VisibleEndTime returns the right edge of the visible window.
func (tl *Timeline) VisibleEndTime() float64 {
	return tl.visibleStartTime + tl.VisibleDuration()
}

// TimeToX maps a time position to an x coordinate within a view of the
// given pixel width. A timeline with zero duration maps everything to 0
// rather than dividing by its empty visible window.
func (tl *Timeline) TimeToX(t, width float64) float64 {
	visible := tl.VisibleDuration()
	if visible <= 0 {
		return 0
	}
	return (t - tl.visibleStartTime) / visible * width
}

// XToTime is the exact inverse of [Timeline.TimeToX] for non-degenerate
// timelines; with zero duration it returns the window start.
func (tl *Timeline) XToTime(x, width float64) float64 {
	if width <= 0 {
		return tl.visibleStartTime
	}
	return tl.visibleStartTime + x/width*tl.VisibleDuration()
}

// Zoom changes the zoom scale, keeping centerTime at the same relative
// position within the visible window. The scale clamps to [1, MaxZoom];
// changes below a small epsilon are ignored.
func (tl *Timeline) Zoom(newScale, centerTime float64) {
	newScale = min(max(newScale, 1), MaxZoom)
	if math.Abs(newScale-tl.zoomScale) < zoomEpsilon {
		return
	}

	oldVisible := tl.VisibleDuration()
	centerProgress := (centerTime - tl.visibleStartTime) / oldVisible

	tl.zoomScale = newScale
	newVisible := tl.VisibleDuration()
	tl.visibleStartTime = tl.clampStart(centerTime - centerProgress*newVisible)
}

// Pan shifts the visible window by delta seconds, clamped to the
// recording's bounds.
func (tl *Timeline) Pan(delta float64) {
	tl.visibleStartTime = tl.clampStart(tl.visibleStartTime + delta)
}

// EnsureVisible pans the minimum amount needed so that t sits inside the
// visible window with the given padding from either edge.
func (tl *Timeline) EnsureVisible(t, padding float64) {
	visible := tl.VisibleDuration()
	if padding > visible/2 {
		padding = visible / 2
	}

	switch {
	case t-padding < tl.visibleStartTime:
		tl.visibleStartTime = tl.clampStart(t - padding)
	case t+padding > tl.visibleStartTime+visible:
		tl.visibleStartTime = tl.clampStart(t + padding - visible)
	}
}

// clampStart bounds a candidate visibleStartTime to [0, duration-visible].
// Clamping happens here, at each mutation site, never via a reactive
// setter.
func (tl *Timeline) clampStart(start float64) float64 {
	maxStart := tl.duration - tl.VisibleDuration()
	if maxStart < 0 {
		maxStart = 0
	}
	return min(max(start, 0), maxStart)
}

// quantizationTiers maps the visible duration to the time resolution used
// for interactive edits. Resolution is finest when zoomed far in and
// coarsens as more time becomes visible.
var quantizationTiers = []struct {
	maxVisible float64
	step       float64
}{
	{2, 0.01},
	{10, 0.05},
	{30, 0.1},
	{120, 0.5},
}

// QuantizationStep returns the time resolution for the current zoom level.
func (tl *Timeline) QuantizationStep() float64 {
	visible := tl.VisibleDuration()
	for _, tier := range quantizationTiers {
		if visible < tier.maxVisible {
			return tier.step
		}
	}
	return 1.0
}

// Quantize rounds t to the current quantization step.
func (tl *Timeline) Quantize(t float64) float64 {
	step := tl.QuantizationStep()
	return math.Round(t/step) * step
}
