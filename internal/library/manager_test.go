package library_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/memocut/memocut/internal/catalog"
	"github.com/memocut/memocut/internal/library"
	"github.com/memocut/memocut/internal/silence"
	"github.com/memocut/memocut/pkg/audio"
	"github.com/memocut/memocut/pkg/wave"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

// manualSettings keeps detection deterministic for synthetic fixtures.
var manualSettings = silence.Settings{
	ThresholdDB:        -45,
	AutoThreshold:      false,
	MinSilenceDuration: 0.5,
	EnableFade:         false,
}

type fixture struct {
	store   *catalog.Store
	manager *library.Manager
	dataDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := library.NewManager(store, library.Options{
		DataDir:         dir,
		Canonical:       testFormat,
		AnalysisWorkers: 2,
		Defaults:        manualSettings,
		EditPadding:     0,
	})
	return &fixture{store: store, manager: m, dataDir: dir}
}

// ampForDB returns the constant sample amplitude whose RMS is the given dBFS.
func ampForDB(db float64) int16 {
	return int16(math.Round(32768 * math.Pow(10, db/20)))
}

// appendSpan appends seconds of constant-amplitude samples.
func appendSpan(samples []int16, seconds float64, amp int16) []int16 {
	n := int(seconds * float64(testFormat.SampleRate))
	for range n {
		samples = append(samples, amp)
	}
	return samples
}

// writeWAV writes samples as a 16-bit PCM file in the given format.
func writeWAV(t *testing.T, path string, format audio.Format, samples []int16) {
	t.Helper()
	w, err := wave.CreateWriter(path, format)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	if err := w.WriteFrames(samples); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

// speechWithPause is loud for 2s, silent for 2s, loud for 2s.
func speechWithPause() []int16 {
	var s []int16
	s = appendSpan(s, 2, ampForDB(-20))
	s = appendSpan(s, 2, 0)
	s = appendSpan(s, 2, ampForDB(-20))
	return s
}

func TestManager_Import(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// Source in a different format; import must convert.
	src := filepath.Join(t.TempDir(), "meeting notes.wav")
	srcFormat := audio.Format{SampleRate: 16000, Channels: 2}
	var samples []int16
	for range 16000 * 3 { // 3 seconds, stereo
		samples = append(samples, 1000, 1000)
	}
	writeWAV(t, src, srcFormat, samples)

	memo, err := f.manager.Import(ctx, src, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if memo.Title != "meeting notes" {
		t.Errorf("title: got %q, want %q", memo.Title, "meeting notes")
	}
	if memo.SampleRate != testFormat.SampleRate || memo.Channels != testFormat.Channels {
		t.Errorf("format: got %d/%d, want canonical", memo.SampleRate, memo.Channels)
	}
	if math.Abs(memo.Duration-3.0) > 0.01 {
		t.Errorf("duration: got %v, want ~3.0", memo.Duration)
	}

	r, err := wave.OpenReader(memo.Path)
	if err != nil {
		t.Fatalf("open imported file: %v", err)
	}
	defer r.Close()
	if r.Format() != testFormat {
		t.Errorf("imported file format: got %v, want %v", r.Format(), testFormat)
	}

	stored, err := f.store.GetMemo(ctx, memo.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if stored.Path != memo.Path {
		t.Errorf("stored path: got %q, want %q", stored.Path, memo.Path)
	}
}

func TestManager_ImportRejectsGarbage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.Import(context.Background(), src, ""); err == nil {
		t.Fatal("expected error for non-WAV input, got nil")
	}
}

func importSamples(t *testing.T, f *fixture, title string, samples []int16) *catalog.Memo {
	t.Helper()
	src := filepath.Join(t.TempDir(), title+".wav")
	writeWAV(t, src, testFormat, samples)
	memo, err := f.manager.Import(context.Background(), src, title)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return memo
}

func TestManager_AnalyzeStoresRanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	memo := importSamples(t, f, "pause", speechWithPause())

	ranges, err := f.manager.Analyze(ctx, memo.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d ranges, want 1: %+v", len(ranges), ranges)
	}
	if math.Abs(ranges[0].Start-2.0) > 0.05 || math.Abs(ranges[0].End-4.0) > 0.05 {
		t.Errorf("range: got [%v, %v), want ~[2, 4)", ranges[0].Start, ranges[0].End)
	}

	stored, err := f.store.Ranges(ctx, memo.ID)
	if err != nil {
		t.Fatalf("load ranges: %v", err)
	}
	if len(stored) != 1 || stored[0] != ranges[0] {
		t.Errorf("stored ranges mismatch: %+v vs %+v", stored, ranges)
	}

	reloaded, err := f.store.GetMemo(ctx, memo.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if reloaded.AnalyzedAt.IsZero() {
		t.Error("analyzed_at should be set after analysis")
	}
}

func TestManager_AnalyzeUnknownMemo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.manager.Analyze(context.Background(), uuid.New())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestManager_AnalyzeUsesMemoOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// The pause sits at -50 dB: silent under the default -45 threshold but
	// not under a -55 override.
	var samples []int16
	samples = appendSpan(samples, 2, ampForDB(-20))
	samples = appendSpan(samples, 2, ampForDB(-50))
	samples = appendSpan(samples, 2, ampForDB(-20))
	memo := importSamples(t, f, "override", samples)

	ranges, err := f.manager.Analyze(ctx, memo.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("default threshold should flag pause, got %+v", ranges)
	}

	override := manualSettings
	override.ThresholdDB = -55
	if err := f.store.SetSettings(ctx, memo.ID, override); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	ranges, err = f.manager.Analyze(ctx, memo.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("override threshold should clear ranges, got %+v", ranges)
	}
}

func TestManager_ReanalyzeAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := importSamples(t, f, "a", speechWithPause())
	b := importSamples(t, f, "b", speechWithPause())

	if err := f.manager.ReanalyzeAll(ctx); err != nil {
		t.Fatalf("reanalyze all: %v", err)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		memo, err := f.store.GetMemo(ctx, id)
		if err != nil {
			t.Fatalf("get memo: %v", err)
		}
		if memo.AnalyzedAt.IsZero() {
			t.Errorf("memo %s not analyzed", id)
		}
	}
}

func TestManager_ReanalyzeAllReportsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	memo := importSamples(t, f, "missing", speechWithPause())
	if err := os.Remove(memo.Path); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.ReanalyzeAll(ctx); err == nil {
		t.Fatal("expected error for missing audio file, got nil")
	}
}

func TestManager_Trim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var samples []int16
	samples = appendSpan(samples, 10, 1000)
	memo := importSamples(t, f, "long", samples)
	oldPath := memo.Path

	edited, err := f.manager.Trim(ctx, memo.ID, 2, 5)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if math.Abs(edited.Duration-3.0) > 0.001 {
		t.Errorf("duration: got %v, want 3.0", edited.Duration)
	}
	if edited.Path == oldPath {
		t.Error("trim should produce a new file")
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("old audio file should be removed, stat err: %v", err)
	}

	stored, err := f.store.GetMemo(ctx, memo.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if stored.Path != edited.Path || stored.Duration != edited.Duration {
		t.Errorf("catalog not updated: %+v", stored)
	}
	if !stored.AnalyzedAt.IsZero() {
		t.Error("analysis timestamp should reset after edit")
	}
}

func TestManager_TrimInvalidRangeLeavesMemoIntact(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var samples []int16
	samples = appendSpan(samples, 4, 1000)
	memo := importSamples(t, f, "short", samples)

	_, err := f.manager.Trim(ctx, memo.ID, 3, 2)
	if err == nil {
		t.Fatal("expected error for inverted range, got nil")
	}

	stored, err := f.store.GetMemo(ctx, memo.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if stored.Path != memo.Path || stored.Duration != memo.Duration {
		t.Errorf("failed edit must not change the catalog: %+v", stored)
	}
	if _, err := os.Stat(memo.Path); err != nil {
		t.Errorf("source audio must survive a failed edit: %v", err)
	}
}

func TestManager_Cut(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var samples []int16
	samples = appendSpan(samples, 10, 1000)
	memo := importSamples(t, f, "cuttable", samples)

	edited, err := f.manager.Cut(ctx, memo.ID, 2, 5)
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if math.Abs(edited.Duration-7.0) > 0.001 {
		t.Errorf("duration: got %v, want 7.0", edited.Duration)
	}
}

func TestManager_StripSilence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	memo := importSamples(t, f, "pausey", speechWithPause())

	edited, result, err := f.manager.StripSilence(ctx, memo.ID)
	if err != nil {
		t.Fatalf("strip silence: %v", err)
	}
	if result.RemovedRanges != 1 {
		t.Errorf("removed ranges: got %d, want 1", result.RemovedRanges)
	}
	if math.Abs(edited.Duration-4.0) > 0.1 {
		t.Errorf("duration: got %v, want ~4.0", edited.Duration)
	}
	if math.Abs(result.RemovedDuration-2.0) > 0.1 {
		t.Errorf("removed duration: got %v, want ~2.0", result.RemovedDuration)
	}
}

func TestManager_StripSilenceNothingToRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var samples []int16
	samples = appendSpan(samples, 3, ampForDB(-20))
	memo := importSamples(t, f, "dense", samples)

	edited, result, err := f.manager.StripSilence(ctx, memo.ID)
	if err != nil {
		t.Fatalf("strip silence: %v", err)
	}
	if result.RemovedRanges != 0 {
		t.Errorf("removed ranges: got %d, want 0", result.RemovedRanges)
	}
	if edited.Path != memo.Path {
		t.Errorf("no-op strip should keep the source file, got %q", edited.Path)
	}
}
