// Package library orchestrates the memo library: importing recordings into
// the canonical on-disk format, running silence analysis, and applying
// destructive edits through the segment editor.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/memocut/memocut/internal/catalog"
	"github.com/memocut/memocut/internal/observe"
	"github.com/memocut/memocut/internal/segment"
	"github.com/memocut/memocut/internal/silence"
	"github.com/memocut/memocut/pkg/audio"
	"github.com/memocut/memocut/pkg/wave"
)

// ErrEditInFlight is returned when an edit is requested for a memo that
// already has one running. Edits rewrite the memo's audio file, so at most
// one may run per memo at a time.
var ErrEditInFlight = errors.New("library: edit already in progress for this memo")

// importChunkFrames is how many frames Import moves per read.
const importChunkFrames = 48000

// Options configures a [Manager].
type Options struct {
	// DataDir is where imported recordings are written.
	DataDir string

	// Canonical is the format imports are converted to.
	Canonical audio.Format

	// AnalysisWorkers bounds concurrent memos in [Manager.ReanalyzeAll].
	AnalysisWorkers int

	// Defaults are the silence settings used for memos without an override.
	Defaults silence.Settings

	// EditPadding is the silence kept on each side of a removed range,
	// in seconds.
	EditPadding float64
}

// Manager owns the memo library. All methods are safe for concurrent use.
type Manager struct {
	store   *catalog.Store
	editor  *segment.Editor
	metrics *observe.Metrics

	dataDir   string
	canonical audio.Format
	workers   int

	mu       sync.Mutex
	defaults silence.Settings
	padding  float64
	editing  map[uuid.UUID]bool

	now func() time.Time
}

// NewManager creates a library manager backed by the given catalog store.
func NewManager(store *catalog.Store, opts Options) *Manager {
	m := opts.Defaults
	if m == (silence.Settings{}) {
		m = silence.DefaultSettings()
	}
	workers := opts.AnalysisWorkers
	if workers < 1 {
		workers = 1
	}
	met := observe.DefaultMetrics()
	return &Manager{
		store:     store,
		editor:    segment.NewEditor(met),
		metrics:   met,
		dataDir:   opts.DataDir,
		canonical: opts.Canonical,
		workers:   workers,
		defaults:  m.Clamp(),
		padding:   opts.EditPadding,
		editing:   make(map[uuid.UUID]bool),
		now:       time.Now,
	}
}

// UpdateDefaults applies hot-reloaded silence settings and edit padding.
// Existing per-memo overrides are untouched; cached ranges stay valid until
// the next analysis run.
func (m *Manager) UpdateDefaults(defaults silence.Settings, padding float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = defaults.Clamp()
	m.padding = padding
}

// SettingsFor resolves the effective silence settings for a memo: its
// stored override if present, otherwise the library defaults.
func (m *Manager) SettingsFor(ctx context.Context, id uuid.UUID) (silence.Settings, error) {
	set, ok, err := m.store.Settings(ctx, id)
	if err != nil {
		return silence.Settings{}, err
	}
	if ok {
		return set.Clamp(), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults, nil
}

// Import copies the WAV file at srcPath into the library, converting it to
// the canonical sample rate and channel count, and registers it in the
// catalog under a fresh id.
func (m *Manager) Import(ctx context.Context, srcPath, title string) (*catalog.Memo, error) {
	r, err := wave.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("library: import %q: %w", srcPath, err)
	}
	defer r.Close()

	id := uuid.New()
	if title == "" {
		title = strippedName(srcPath)
	}
	dstPath := filepath.Join(m.dataDir, id.String()+".wav")

	w, err := wave.CreateWriter(dstPath, m.canonical)
	if err != nil {
		return nil, fmt.Errorf("library: import %q: %w", srcPath, err)
	}

	src := r.Format()
	total := r.TotalFrames()
	for at := int64(0); at < total; at += importChunkFrames {
		if err := ctx.Err(); err != nil {
			w.Close()
			os.Remove(dstPath)
			return nil, err
		}
		frames, err := r.ReadFrames(at, importChunkFrames)
		if err != nil {
			w.Close()
			os.Remove(dstPath)
			return nil, fmt.Errorf("library: import %q: %w", srcPath, err)
		}
		if err := w.WriteFrames(audio.Convert(frames, src, m.canonical)); err != nil {
			w.Close()
			os.Remove(dstPath)
			return nil, fmt.Errorf("library: import %q: %w", srcPath, err)
		}
	}

	written := w.FramesWritten()
	if err := w.Close(); err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("library: import %q: %w", srcPath, err)
	}

	memo := &catalog.Memo{
		ID:         id,
		Title:      title,
		Path:       dstPath,
		SampleRate: m.canonical.SampleRate,
		Channels:   m.canonical.Channels,
		Duration:   m.canonical.TimeForFrame(written),
		CreatedAt:  m.now().UTC(),
	}
	if err := m.store.AddMemo(ctx, memo); err != nil {
		os.Remove(dstPath)
		return nil, err
	}

	slog.Info("memo imported",
		"id", id,
		"title", title,
		"duration", memo.Duration,
		"source", srcPath)
	return memo, nil
}

// AnalyzePath runs silence detection on a WAV file without touching the
// catalog. When settings request an automatic threshold, the noise floor is
// estimated first; if estimation is impossible (file shorter than one
// analysis window), the configured threshold is used instead.
func (m *Manager) AnalyzePath(ctx context.Context, path string, settings silence.Settings) ([]silence.Range, error) {
	settings = settings.Clamp()

	r, err := wave.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("library: analyze %q: %w", path, err)
	}
	defer r.Close()

	threshold := settings.ThresholdDB
	if settings.AutoThreshold {
		floor, err := silence.EstimateNoiseFloor(r)
		switch {
		case errors.Is(err, silence.ErrUnavailable):
			slog.Debug("noise floor unavailable, using configured threshold",
				"path", path, "threshold_db", threshold)
		case err != nil:
			return nil, fmt.Errorf("library: analyze %q: %w", path, err)
		default:
			threshold = silence.DeriveThreshold(floor)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ranges, err := silence.Detect(r, threshold, settings.MinSilenceDuration)
	if err != nil {
		return nil, fmt.Errorf("library: analyze %q: %w", path, err)
	}
	return ranges, nil
}

// Analyze runs silence detection on a memo and stores the resulting ranges
// in the catalog.
func (m *Manager) Analyze(ctx context.Context, id uuid.UUID) ([]silence.Range, error) {
	memo, err := m.store.GetMemo(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := m.SettingsFor(ctx, id)
	if err != nil {
		return nil, err
	}

	start := m.now()
	ranges, err := m.AnalyzePath(ctx, memo.Path, settings)
	if err != nil {
		m.metrics.RecordAnalysis(ctx, m.now().Sub(start).Seconds(), 0, "error")
		return nil, err
	}
	if err := m.store.SaveRanges(ctx, id, ranges, m.now().UTC()); err != nil {
		m.metrics.RecordAnalysis(ctx, m.now().Sub(start).Seconds(), len(ranges), "error")
		return nil, err
	}
	m.metrics.RecordAnalysis(ctx, m.now().Sub(start).Seconds(), len(ranges), "ok")

	slog.Debug("memo analyzed", "id", id, "ranges", len(ranges))
	return ranges, nil
}

// ReanalyzeAll re-runs silence detection for every memo in the catalog,
// bounded by the configured worker count. The first failure cancels the
// remaining work.
func (m *Manager) ReanalyzeAll(ctx context.Context) error {
	memos, err := m.store.ListMemos(ctx)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.workers)
	for _, memo := range memos {
		eg.Go(func() error {
			if _, err := m.Analyze(egCtx, memo.ID); err != nil {
				return fmt.Errorf("memo %s: %w", memo.ID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Trim keeps only [startTime, endTime) of the memo's audio.
func (m *Manager) Trim(ctx context.Context, id uuid.UUID, startTime, endTime float64) (*catalog.Memo, error) {
	return m.edit(ctx, id, func(source string) (segment.Result, error) {
		return m.editor.Trim(ctx, source, startTime, endTime)
	})
}

// Cut removes [startTime, endTime) from the memo's audio.
func (m *Manager) Cut(ctx context.Context, id uuid.UUID, startTime, endTime float64) (*catalog.Memo, error) {
	return m.edit(ctx, id, func(source string) (segment.Result, error) {
		return m.editor.Cut(ctx, source, startTime, endTime)
	})
}

// StripSilence removes the memo's detected silent ranges from its audio,
// analysing first if no ranges are cached. Padding and splice fades follow
// the memo's effective settings.
func (m *Manager) StripSilence(ctx context.Context, id uuid.UUID) (*catalog.Memo, *segment.RemoveResult, error) {
	settings, err := m.SettingsFor(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ranges, err := m.store.Ranges(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ranges == nil {
		if ranges, err = m.Analyze(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	m.mu.Lock()
	padding := m.padding
	m.mu.Unlock()

	opts := segment.RemoveOptions{Padding: padding}
	if settings.EnableFade {
		opts.FadeDuration = settings.FadeDuration
	}

	var result segment.RemoveResult
	memo, err := m.edit(ctx, id, func(source string) (segment.Result, error) {
		res, err := m.editor.RemoveRanges(ctx, source, ranges, opts)
		result = res
		return res.Result, err
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("silence stripped",
		"id", id,
		"removed_ranges", result.RemovedRanges,
		"removed_seconds", result.RemovedDuration)
	return memo, &result, nil
}

// edit runs op against the memo's current audio under the per-memo edit
// gate and commits the result to the catalog. A failed edit leaves the
// catalog untouched and removes any partial output file.
func (m *Manager) edit(ctx context.Context, id uuid.UUID, op func(source string) (segment.Result, error)) (*catalog.Memo, error) {
	memo, err := m.store.GetMemo(ctx, id)
	if err != nil {
		return nil, err
	}

	if !m.tryAcquire(id) {
		return nil, ErrEditInFlight
	}
	defer m.release(id)

	m.metrics.ActiveEdits.Add(ctx, 1)
	defer m.metrics.ActiveEdits.Add(ctx, -1)

	res, err := op(memo.Path)
	if err != nil {
		if res.OutputPath != "" && res.OutputPath != memo.Path {
			os.Remove(res.OutputPath)
		}
		return nil, err
	}
	if res.OutputPath == memo.Path {
		// Nothing was removed; the source file stands as is.
		return memo, nil
	}

	if err := m.store.UpdateAudio(ctx, id, res.OutputPath, res.NewDuration); err != nil {
		os.Remove(res.OutputPath)
		return nil, err
	}

	old := memo.Path
	if err := os.Remove(old); err != nil {
		slog.Warn("failed to remove replaced audio file", "path", old, "err", err)
	}

	memo.Path = res.OutputPath
	memo.Duration = res.NewDuration
	memo.AnalyzedAt = time.Time{}
	return memo, nil
}

func (m *Manager) tryAcquire(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editing[id] {
		return false
	}
	m.editing[id] = true
	return true
}

func (m *Manager) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.editing, id)
}

// strippedName derives a memo title from a file path.
func strippedName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
