// Package catalog persists the memo library in a local SQLite database.
//
// The catalog is the durable index over the recording files on disk: one
// row per memo plus its detected silence ranges and any per-memo override
// of the silence settings. Audio samples never enter the database; only
// paths and metadata do.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/memocut/memocut/internal/silence"
)

// ErrNotFound is returned when a memo id is not in the catalog.
var ErrNotFound = errors.New("catalog: memo not found")

const schema = `
CREATE TABLE IF NOT EXISTS memos (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    path         TEXT NOT NULL,
    sample_rate  INTEGER NOT NULL,
    channels     INTEGER NOT NULL,
    duration     REAL NOT NULL,
    created_at   INTEGER NOT NULL,
    analyzed_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_memos_created ON memos(created_at);

CREATE TABLE IF NOT EXISTS silence_ranges (
    memo_id    TEXT NOT NULL REFERENCES memos(id) ON DELETE CASCADE,
    ordinal    INTEGER NOT NULL,
    start_sec  REAL NOT NULL,
    end_sec    REAL NOT NULL,
    PRIMARY KEY (memo_id, ordinal)
);

CREATE TABLE IF NOT EXISTS memo_settings (
    memo_id              TEXT PRIMARY KEY REFERENCES memos(id) ON DELETE CASCADE,
    threshold_db         REAL NOT NULL,
    auto_threshold       INTEGER NOT NULL,
    min_silence_duration REAL NOT NULL,
    enable_fade          INTEGER NOT NULL,
    fade_duration        REAL NOT NULL
);
`

// Memo is one recording in the library.
type Memo struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`

	// Duration is the recording length in seconds.
	Duration float64 `json:"duration"`

	CreatedAt time.Time `json:"created_at"`

	// AnalyzedAt is when silence detection last ran, zero if never.
	AnalyzedAt time.Time `json:"analyzed_at,omitzero"`
}

// Store is the SQLite-backed memo catalog.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddMemo inserts a new memo row.
func (s *Store) AddMemo(ctx context.Context, m *Memo) error {
	var analyzedAt any
	if !m.AnalyzedAt.IsZero() {
		analyzedAt = m.AnalyzedAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memos (id, title, path, sample_rate, channels, duration, created_at, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Title, m.Path, m.SampleRate, m.Channels, m.Duration, m.CreatedAt.Unix(), analyzedAt,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert memo: %w", err)
	}
	return nil
}

// GetMemo retrieves a memo by id. Returns [ErrNotFound] for unknown ids.
func (s *Store) GetMemo(ctx context.Context, id uuid.UUID) (*Memo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, path, sample_rate, channels, duration, created_at, analyzed_at
		FROM memos WHERE id = ?`, id.String(),
	)
	m, err := scanMemo(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get memo: %w", err)
	}
	return m, nil
}

// ListMemos returns all memos, newest first.
func (s *Store) ListMemos(ctx context.Context) ([]Memo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, path, sample_rate, channels, duration, created_at, analyzed_at
		FROM memos ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: query memos: %w", err)
	}
	defer rows.Close()

	var memos []Memo
	for rows.Next() {
		m, err := scanMemo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan memo: %w", err)
		}
		memos = append(memos, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate memos: %w", err)
	}
	return memos, nil
}

// UpdateAudio records the new file path and duration after an edit replaced
// the memo's audio. Any cached silence ranges and the analysis timestamp are
// cleared since they describe the old audio.
func (s *Store) UpdateAudio(ctx context.Context, id uuid.UUID, path string, duration float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE memos SET path = ?, duration = ?, analyzed_at = NULL WHERE id = ?`,
		path, duration, id.String(),
	)
	if err != nil {
		return fmt.Errorf("catalog: update memo audio: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM silence_ranges WHERE memo_id = ?`, id.String()); err != nil {
		return fmt.Errorf("catalog: clear silence ranges: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit transaction: %w", err)
	}
	return nil
}

// DeleteMemo removes a memo and its dependent rows.
func (s *Store) DeleteMemo(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memos WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("catalog: delete memo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRanges replaces the stored silence ranges for a memo and stamps the
// analysis time.
func (s *Store) SaveRanges(ctx context.Context, id uuid.UUID, ranges []silence.Range, analyzedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE memos SET analyzed_at = ? WHERE id = ?`,
		analyzedAt.Unix(), id.String())
	if err != nil {
		return fmt.Errorf("catalog: stamp analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM silence_ranges WHERE memo_id = ?`, id.String()); err != nil {
		return fmt.Errorf("catalog: clear silence ranges: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO silence_ranges (memo_id, ordinal, start_sec, end_sec)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range ranges {
		if _, err := stmt.ExecContext(ctx, id.String(), i, r.Start, r.End); err != nil {
			return fmt.Errorf("catalog: insert silence range: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit transaction: %w", err)
	}
	return nil
}

// Ranges returns the stored silence ranges for a memo, in order. Rows that
// no longer form a sorted, non-overlapping sequence are discarded wholesale
// rather than returned; the caller should re-run analysis.
func (s *Store) Ranges(ctx context.Context, id uuid.UUID) ([]silence.Range, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_sec, end_sec FROM silence_ranges
		WHERE memo_id = ? ORDER BY ordinal`, id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: query silence ranges: %w", err)
	}
	defer rows.Close()

	var ranges []silence.Range
	for rows.Next() {
		var r silence.Range
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("catalog: scan silence range: %w", err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate silence ranges: %w", err)
	}

	if !silence.ValidRanges(ranges) {
		return nil, nil
	}
	return ranges, nil
}

// SetSettings stores a per-memo override of the silence settings.
func (s *Store) SetSettings(ctx context.Context, id uuid.UUID, set silence.Settings) error {
	if _, err := s.GetMemo(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memo_settings (memo_id, threshold_db, auto_threshold, min_silence_duration, enable_fade, fade_duration)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), set.ThresholdDB, set.AutoThreshold, set.MinSilenceDuration, set.EnableFade, set.FadeDuration,
	)
	if err != nil {
		return fmt.Errorf("catalog: set memo settings: %w", err)
	}
	return nil
}

// Settings returns the per-memo settings override, if one exists.
func (s *Store) Settings(ctx context.Context, id uuid.UUID) (silence.Settings, bool, error) {
	var set silence.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT threshold_db, auto_threshold, min_silence_duration, enable_fade, fade_duration
		FROM memo_settings WHERE memo_id = ?`, id.String(),
	).Scan(&set.ThresholdDB, &set.AutoThreshold, &set.MinSilenceDuration, &set.EnableFade, &set.FadeDuration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return silence.Settings{}, false, nil
		}
		return silence.Settings{}, false, fmt.Errorf("catalog: get memo settings: %w", err)
	}
	return set, true, nil
}

// ClearSettings removes a per-memo settings override.
func (s *Store) ClearSettings(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memo_settings WHERE memo_id = ?`, id.String()); err != nil {
		return fmt.Errorf("catalog: clear memo settings: %w", err)
	}
	return nil
}

func scanMemo(scan func(dest ...any) error) (*Memo, error) {
	var m Memo
	var rawID string
	var createdAt int64
	var analyzedAt sql.NullInt64

	if err := scan(&rawID, &m.Title, &m.Path, &m.SampleRate, &m.Channels, &m.Duration, &createdAt, &analyzedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse memo id %q: %w", rawID, err)
	}
	m.ID = id
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	if analyzedAt.Valid {
		m.AnalyzedAt = time.Unix(analyzedAt.Int64, 0).UTC()
	}
	return &m, nil
}
