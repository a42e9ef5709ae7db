package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memocut/memocut/internal/catalog"
	"github.com/memocut/memocut/internal/silence"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemo(title string, createdAt time.Time) *catalog.Memo {
	return &catalog.Memo{
		ID:         uuid.New(),
		Title:      title,
		Path:       "/recordings/" + title + ".wav",
		SampleRate: 48000,
		Channels:   1,
		Duration:   12.5,
		CreatedAt:  createdAt,
	}
}

func TestStore_AddAndGetMemo(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	want := newMemo("standup", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err := s.AddMemo(ctx, want); err != nil {
		t.Fatalf("add memo: %v", err)
	}

	got, err := s.GetMemo(ctx, want.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title || got.Path != want.Path {
		t.Errorf("memo mismatch: got %+v, want %+v", got, want)
	}
	if got.SampleRate != 48000 || got.Channels != 1 || got.Duration != 12.5 {
		t.Errorf("audio metadata mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if !got.AnalyzedAt.IsZero() {
		t.Errorf("analyzed_at should be zero for fresh memo, got %v", got.AnalyzedAt)
	}
}

func TestStore_GetMemoNotFound(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	_, err := s.GetMemo(context.Background(), uuid.New())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_ListMemosNewestFirst(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := newMemo("older", base)
	newer := newMemo("newer", base.Add(time.Hour))
	for _, m := range []*catalog.Memo{older, newer} {
		if err := s.AddMemo(ctx, m); err != nil {
			t.Fatalf("add memo: %v", err)
		}
	}

	memos, err := s.ListMemos(ctx)
	if err != nil {
		t.Fatalf("list memos: %v", err)
	}
	if len(memos) != 2 {
		t.Fatalf("got %d memos, want 2", len(memos))
	}
	if memos[0].Title != "newer" || memos[1].Title != "older" {
		t.Errorf("ordering wrong: %q, %q", memos[0].Title, memos[1].Title)
	}
}

func TestStore_SaveAndLoadRanges(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	m := newMemo("ranges", time.Now().UTC().Truncate(time.Second))
	if err := s.AddMemo(ctx, m); err != nil {
		t.Fatalf("add memo: %v", err)
	}

	want := []silence.Range{{Start: 1.0, End: 2.5}, {Start: 4.0, End: 6.0}}
	analyzedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := s.SaveRanges(ctx, m.ID, want, analyzedAt); err != nil {
		t.Fatalf("save ranges: %v", err)
	}

	got, err := s.Ranges(ctx, m.ID)
	if err != nil {
		t.Fatalf("load ranges: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d ranges, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	reloaded, err := s.GetMemo(ctx, m.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if !reloaded.AnalyzedAt.Equal(analyzedAt) {
		t.Errorf("analyzed_at: got %v, want %v", reloaded.AnalyzedAt, analyzedAt)
	}
}

func TestStore_SaveRangesUnknownMemo(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	err := s.SaveRanges(context.Background(), uuid.New(), []silence.Range{{Start: 1, End: 2}}, time.Now())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_RangesDiscardsCorruptSequence(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	m := newMemo("corrupt", time.Now().UTC())
	if err := s.AddMemo(ctx, m); err != nil {
		t.Fatalf("add memo: %v", err)
	}

	// Overlapping ranges are never produced by detection; if they show up
	// in the database the whole set is untrustworthy.
	bad := []silence.Range{{Start: 1, End: 4}, {Start: 3, End: 6}}
	if err := s.SaveRanges(ctx, m.ID, bad, time.Now()); err != nil {
		t.Fatalf("save ranges: %v", err)
	}

	got, err := s.Ranges(ctx, m.ID)
	if err != nil {
		t.Fatalf("load ranges: %v", err)
	}
	if got != nil {
		t.Errorf("corrupt sequence should be discarded, got %+v", got)
	}
}

func TestStore_UpdateAudioClearsAnalysis(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	m := newMemo("edited", time.Now().UTC())
	if err := s.AddMemo(ctx, m); err != nil {
		t.Fatalf("add memo: %v", err)
	}
	if err := s.SaveRanges(ctx, m.ID, []silence.Range{{Start: 1, End: 2}}, time.Now()); err != nil {
		t.Fatalf("save ranges: %v", err)
	}

	if err := s.UpdateAudio(ctx, m.ID, "/recordings/edited_1.wav", 8.25); err != nil {
		t.Fatalf("update audio: %v", err)
	}

	got, err := s.GetMemo(ctx, m.ID)
	if err != nil {
		t.Fatalf("get memo: %v", err)
	}
	if got.Path != "/recordings/edited_1.wav" || got.Duration != 8.25 {
		t.Errorf("audio not updated: %+v", got)
	}
	if !got.AnalyzedAt.IsZero() {
		t.Errorf("analyzed_at should reset after edit, got %v", got.AnalyzedAt)
	}

	ranges, err := s.Ranges(ctx, m.ID)
	if err != nil {
		t.Fatalf("load ranges: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("ranges should be cleared after edit, got %+v", ranges)
	}
}

func TestStore_UpdateAudioUnknownMemo(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	err := s.UpdateAudio(context.Background(), uuid.New(), "/tmp/x.wav", 1)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteMemo(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	m := newMemo("doomed", time.Now().UTC())
	if err := s.AddMemo(ctx, m); err != nil {
		t.Fatalf("add memo: %v", err)
	}
	if err := s.SaveRanges(ctx, m.ID, []silence.Range{{Start: 1, End: 2}}, time.Now()); err != nil {
		t.Fatalf("save ranges: %v", err)
	}

	if err := s.DeleteMemo(ctx, m.ID); err != nil {
		t.Fatalf("delete memo: %v", err)
	}
	if _, err := s.GetMemo(ctx, m.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after delete", err)
	}
	if err := s.DeleteMemo(ctx, m.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestStore_MemoSettings(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	m := newMemo("tuned", time.Now().UTC())
	if err := s.AddMemo(ctx, m); err != nil {
		t.Fatalf("add memo: %v", err)
	}

	if _, ok, err := s.Settings(ctx, m.ID); err != nil || ok {
		t.Fatalf("fresh memo should have no override: ok=%v err=%v", ok, err)
	}

	want := silence.Settings{
		ThresholdDB:        -35,
		AutoThreshold:      false,
		MinSilenceDuration: 0.8,
		EnableFade:         true,
		FadeDuration:       0.01,
	}
	if err := s.SetSettings(ctx, m.ID, want); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	got, ok, err := s.Settings(ctx, m.ID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if !ok {
		t.Fatal("override should exist")
	}
	if got != want {
		t.Errorf("settings: got %+v, want %+v", got, want)
	}

	if err := s.ClearSettings(ctx, m.ID); err != nil {
		t.Fatalf("clear settings: %v", err)
	}
	if _, ok, err := s.Settings(ctx, m.ID); err != nil || ok {
		t.Errorf("override should be gone: ok=%v err=%v", ok, err)
	}
}

func TestStore_SetSettingsUnknownMemo(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	err := s.SetSettings(context.Background(), uuid.New(), silence.DefaultSettings())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
