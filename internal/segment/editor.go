// Package segment implements the frame-accurate editing operations of the
// memocut engine: trim, cut, and multi-range silence removal. Every
// operation reads contiguous frame spans from the source WAV and writes a
// brand-new output file in the exact source format; the source is never
// mutated.
//
// Operations are blocking and meant to run off any latency-sensitive
// goroutine. They are not transactional: a failure partway through leaves
// the partial output on disk and the caller owns cleanup, signalled by a
// non-nil error alongside the result.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/memocut/memocut/internal/observe"
	"github.com/memocut/memocut/internal/silence"
	"github.com/memocut/memocut/pkg/audio"
	"github.com/memocut/memocut/pkg/wave"
)

// ErrInvalidRange is returned when requested edit boundaries produce zero
// or negative output, or when silence removal would keep nothing. The
// caller can adjust inputs and retry.
var ErrInvalidRange = errors.New("segment: edit range produces no output")

// Result reports the outcome of a trim or cut.
type Result struct {
	// OutputPath is the freshly written file. On an [ErrInvalidRange]
	// failure it falls back to the source path, which callers must not
	// treat as an edit output.
	OutputPath string

	// NewDuration is the output length in seconds.
	NewDuration float64
}

// RemoveResult reports the outcome of a multi-range removal.
type RemoveResult struct {
	Result

	// RemovedRanges counts input ranges that actually shrank the output;
	// ranges collapsed by padding are not counted.
	RemovedRanges int

	// RemovedDuration is the total audio removed, in seconds.
	RemovedDuration float64
}

// Editor performs frame-accurate edits on WAV files. The zero value is not
// usable; construct with [NewEditor].
type Editor struct {
	metrics *observe.Metrics
	now     func() time.Time
}

// NewEditor returns an Editor that records edit telemetry to m. A nil m
// uses the process-wide default metrics.
func NewEditor(m *observe.Metrics) *Editor {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Editor{metrics: m, now: time.Now}
}

// Trim writes the span [startTime, endTime) of source to a new file,
// discarding everything outside it.
func (e *Editor) Trim(ctx context.Context, source string, startTime, endTime float64) (Result, error) {
	return e.instrumented(ctx, "trim", source, func(r *wave.Reader, w *wave.Writer) error {
		format := r.Format()
		startFrame := format.FrameForTime(startTime)
		endFrame := format.FrameForTime(endTime)
		if endFrame > r.TotalFrames() {
			endFrame = r.TotalFrames()
		}
		if endFrame <= startFrame {
			return fmt.Errorf("%w: trim [%v, %v)", ErrInvalidRange, startTime, endTime)
		}

		samples, err := r.ReadFrames(startFrame, endFrame-startFrame)
		if err != nil {
			return err
		}
		return w.WriteFrames(samples)
	})
}

// Cut removes the interior span [startTime, endTime), keeping the audio
// before and after it in original order.
func (e *Editor) Cut(ctx context.Context, source string, startTime, endTime float64) (Result, error) {
	return e.instrumented(ctx, "cut", source, func(r *wave.Reader, w *wave.Writer) error {
		format := r.Format()
		startFrame := format.FrameForTime(startTime)
		endFrame := format.FrameForTime(endTime)
		if endFrame < startFrame {
			return fmt.Errorf("%w: cut [%v, %v) is reversed", ErrInvalidRange, startTime, endTime)
		}
		total := r.TotalFrames()
		if startFrame > total {
			startFrame = total
		}
		if endFrame > total {
			endFrame = total
		}

		beforeCount := startFrame
		afterCount := total - endFrame
		if beforeCount+afterCount <= 0 {
			return fmt.Errorf("%w: cut [%v, %v) leaves nothing", ErrInvalidRange, startTime, endTime)
		}

		if beforeCount > 0 {
			samples, err := r.ReadFrames(0, beforeCount)
			if err != nil {
				return err
			}
			if err := w.WriteFrames(samples); err != nil {
				return err
			}
		}
		if afterCount > 0 {
			samples, err := r.ReadFrames(endFrame, afterCount)
			if err != nil {
				return err
			}
			if err := w.WriteFrames(samples); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveOptions tunes multi-range removal.
type RemoveOptions struct {
	// Padding shrinks each silent range inward by this many seconds on both
	// sides before removal, preserving a natural breath of silence at each
	// splice. Ranges that collapse under padding are skipped entirely.
	Padding float64

	// FadeDuration, when positive, applies a linear fade-out/fade-in of
	// this many seconds at each splice boundary to avoid clicks.
	FadeDuration float64
}

// RemoveRanges writes source minus the given silent ranges to a new file.
// ranges must already be sorted and pairwise non-overlapping (the detector's
// output contract); they are not re-sorted here. An empty ranges list
// short-circuits and returns the source path unchanged.
func (e *Editor) RemoveRanges(ctx context.Context, source string, ranges []silence.Range, opts RemoveOptions) (RemoveResult, error) {
	out := RemoveResult{Result: Result{OutputPath: source}}

	if len(ranges) == 0 {
		r, err := wave.OpenReader(source)
		if err != nil {
			return out, e.record(ctx, "remove_ranges", err)
		}
		out.NewDuration = r.Duration()
		r.Close()
		return out, e.record(ctx, "remove_ranges", nil)
	}

	res, removed, removedDur, err := e.removeRanges(ctx, source, ranges, opts)
	out.Result = res
	out.RemovedRanges = removed
	out.RemovedDuration = removedDur
	return out, e.record(ctx, "remove_ranges", err)
}

// keepSpan is a frame span of the source that survives removal.
type keepSpan struct {
	start, end int64
}

func (e *Editor) removeRanges(ctx context.Context, source string, ranges []silence.Range, opts RemoveOptions) (Result, int, float64, error) {
	start := e.now()
	ctx, span := observe.StartSpan(ctx, "segment.remove_ranges")
	defer span.End()

	r, err := wave.OpenReader(source)
	if err != nil {
		return Result{OutputPath: source}, 0, 0, err
	}
	defer r.Close()
	format := r.Format()
	total := r.TotalFrames()

	keeps, removed := complement(format, total, ranges, opts.Padding)
	if len(keeps) == 0 {
		return Result{OutputPath: source}, 0, 0,
			fmt.Errorf("%w: all audio within silent ranges", ErrInvalidRange)
	}

	outPath := wave.EditedPath(source, start)
	w, err := wave.CreateWriter(outPath, format)
	if err != nil {
		return Result{OutputPath: source}, 0, 0, err
	}

	fadeFrames := 0
	if opts.FadeDuration > 0 {
		fadeFrames = int(format.FrameForTime(opts.FadeDuration))
	}

	for i, k := range keeps {
		if err := ctx.Err(); err != nil {
			w.Close()
			return Result{OutputPath: outPath}, 0, 0, err
		}
		samples, err := r.ReadFrames(k.start, k.end-k.start)
		if err != nil {
			w.Close()
			return Result{OutputPath: outPath}, 0, 0, err
		}
		if fadeFrames > 0 {
			// Fade in at every splice except the natural file start, and
			// out at every splice except the natural end.
			if i > 0 || k.start > 0 {
				audio.FadeIn(samples, format.Channels, fadeFrames)
			}
			if i < len(keeps)-1 || k.end < total {
				audio.FadeOut(samples, format.Channels, fadeFrames)
			}
		}
		if err := w.WriteFrames(samples); err != nil {
			w.Close()
			return Result{OutputPath: outPath}, 0, 0, err
		}
	}

	kept := w.FramesWritten()
	if err := w.Close(); err != nil {
		return Result{OutputPath: outPath}, 0, 0, err
	}

	removedDur := format.TimeForFrame(total - kept)
	e.metrics.EditDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", "remove_ranges")))
	return Result{OutputPath: outPath, NewDuration: format.TimeForFrame(kept)}, removed, removedDur, nil
}

// complement builds the ordered keep list for a removal: the gaps between
// padded ranges plus the leading and trailing spans. Ranges that collapse
// under padding (length <= 2*padding) are dropped from removal entirely,
// which keeps near-zero gaps from corrupting the output. Returns the keep
// spans and the count of ranges that survived padding.
func complement(format audio.Format, total int64, ranges []silence.Range, padding float64) ([]keepSpan, int) {
	var keeps []keepSpan
	removed := 0
	cursor := int64(0)

	for _, sr := range ranges {
		adjStart := sr.Start + padding
		adjEnd := max(adjStart, sr.End-padding)
		if adjEnd <= adjStart {
			continue // collapsed by padding; treat as never silent
		}

		startFrame := format.FrameForTime(adjStart)
		endFrame := format.FrameForTime(adjEnd)
		if startFrame > total {
			startFrame = total
		}
		if endFrame > total {
			endFrame = total
		}
		if endFrame <= startFrame {
			continue
		}

		if startFrame > cursor {
			keeps = append(keeps, keepSpan{start: cursor, end: startFrame})
		}
		if endFrame > cursor {
			cursor = endFrame
		}
		removed++
	}
	if cursor < total {
		keeps = append(keeps, keepSpan{start: cursor, end: total})
	}
	return keeps, removed
}

// instrumented opens source and a fresh output writer, runs op, and wraps
// the whole thing in a span plus duration/outcome metrics.
func (e *Editor) instrumented(ctx context.Context, name, source string, op func(*wave.Reader, *wave.Writer) error) (Result, error) {
	start := e.now()
	ctx, span := observe.StartSpan(ctx, "segment."+name)
	defer span.End()

	res := Result{OutputPath: source}

	r, err := wave.OpenReader(source)
	if err != nil {
		return res, e.record(ctx, name, err)
	}
	defer r.Close()

	outPath := wave.EditedPath(source, start)
	w, err := wave.CreateWriter(outPath, r.Format())
	if err != nil {
		return res, e.record(ctx, name, err)
	}

	if err := op(r, w); err != nil {
		w.Close()
		if errors.Is(err, ErrInvalidRange) {
			// Nothing was edited; an empty output must not linger.
			os.Remove(outPath)
		} else {
			// Partial output stays on disk; the caller owns cleanup.
			res.OutputPath = outPath
		}
		return res, e.record(ctx, name, err)
	}

	frames := w.FramesWritten()
	if err := w.Close(); err != nil {
		res.OutputPath = outPath
		return res, e.record(ctx, name, err)
	}

	res.OutputPath = outPath
	res.NewDuration = r.Format().TimeForFrame(frames)
	e.metrics.EditDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", name)))
	return res, e.record(ctx, name, nil)
}

// record counts the operation outcome and passes the error through.
func (e *Editor) record(ctx context.Context, op string, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrInvalidRange) {
			status = "invalid_range"
		}
	}
	e.metrics.EditOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
	return err
}
