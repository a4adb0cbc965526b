package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"feltsync/internal/config"
)

// Store persists per-entity-type sync watermarks and cycle history in SQLite.
//
// Watermark timestamps are epoch milliseconds and monotonically non-decreasing:
// recording an older timestamp than the stored one is a no-op, so a replayed
// pull can never move the incremental-fetch boundary backwards.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS sync_metadata (
    entity_type  TEXT PRIMARY KEY,
    last_pull_ms INTEGER NOT NULL DEFAULT 0,
    last_push_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cycle_history (
    id          TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    pulled      INTEGER NOT NULL,
    pushed      INTEGER NOT NULL,
    errors_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_cycle_history_started_at ON cycle_history (started_at);
`

// Open initializes or connects to the metadata database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "metadata.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply metadata schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LastPull returns the last successful pull watermark for an entity type.
// The zero time means the type has never been pulled.
func (s *Store) LastPull(ctx context.Context, entityType string) (time.Time, error) {
	return s.watermark(ctx, entityType, "last_pull_ms")
}

// LastPush returns the last successful push watermark for an entity type.
func (s *Store) LastPush(ctx context.Context, entityType string) (time.Time, error) {
	return s.watermark(ctx, entityType, "last_push_ms")
}

func (s *Store) watermark(ctx context.Context, entityType, column string) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT `+column+` FROM sync_metadata WHERE entity_type = ?`,
		entityType,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s for %s: %w", column, entityType, err)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).UTC(), nil
}

// RecordPull advances the pull watermark for an entity type. Older timestamps
// are ignored.
func (s *Store) RecordPull(ctx context.Context, entityType string, ts time.Time) error {
	return s.advance(ctx, entityType, "last_pull_ms", ts)
}

// RecordPush advances the push watermark for an entity type. Older timestamps
// are ignored.
func (s *Store) RecordPush(ctx context.Context, entityType string, ts time.Time) error {
	return s.advance(ctx, entityType, "last_push_ms", ts)
}

func (s *Store) advance(ctx context.Context, entityType, column string, ts time.Time) error {
	if entityType == "" {
		return errors.New("entity type is required")
	}
	ms := ts.UTC().UnixMilli()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sync_metadata (entity_type, `+column+`) VALUES (?, ?)
            ON CONFLICT(entity_type) DO UPDATE SET `+column+` = excluded.`+column+`
            WHERE excluded.`+column+` > sync_metadata.`+column,
		entityType,
		ms,
	)
	if err != nil {
		return fmt.Errorf("advance %s for %s: %w", column, entityType, err)
	}
	return nil
}

// Watermarks holds both sync timestamps for one entity type.
type Watermarks struct {
	EntityType string
	LastPull   time.Time
	LastPush   time.Time
}

// All returns the watermarks for every entity type ever synced.
func (s *Store) All(ctx context.Context) ([]Watermarks, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT entity_type, last_pull_ms, last_push_ms FROM sync_metadata ORDER BY entity_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	defer rows.Close()

	var result []Watermarks
	for rows.Next() {
		var (
			wm     Watermarks
			pullMS int64
			pushMS int64
		)
		if err := rows.Scan(&wm.EntityType, &pullMS, &pushMS); err != nil {
			return nil, err
		}
		if pullMS > 0 {
			wm.LastPull = time.UnixMilli(pullMS).UTC()
		}
		if pushMS > 0 {
			wm.LastPush = time.UnixMilli(pushMS).UTC()
		}
		result = append(result, wm)
	}
	return result, rows.Err()
}

// CycleRecord captures the outcome of one full sync cycle for observability.
type CycleRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Pulled    int
	Pushed    int
	Errors    []string
}

// Succeeded reports whether the cycle finished without handler errors.
func (r CycleRecord) Succeeded() bool {
	return len(r.Errors) == 0
}

// RecordCycle appends a cycle outcome to the history side channel.
func (s *Store) RecordCycle(ctx context.Context, record CycleRecord) error {
	if record.ID == "" {
		return errors.New("cycle id is required")
	}
	var errorsJSON any
	if len(record.Errors) > 0 {
		data, err := json.Marshal(record.Errors)
		if err != nil {
			return fmt.Errorf("marshal cycle errors: %w", err)
		}
		errorsJSON = string(data)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cycle_history (id, started_at, duration_ms, pulled, pushed, errors_json)
            VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.Duration.Milliseconds(),
		record.Pulled,
		record.Pushed,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// RecentCycles returns the newest cycle records, most recent first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, started_at, duration_ms, pulled, pushed, errors_json
            FROM cycle_history ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var (
			record     CycleRecord
			startedAt  string
			durationMS int64
			errorsJSON sql.NullString
		)
		if err := rows.Scan(&record.ID, &startedAt, &durationMS, &record.Pulled, &record.Pushed, &errorsJSON); err != nil {
			return nil, err
		}
		if record.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse cycle started_at: %w", err)
		}
		record.Duration = time.Duration(durationMS) * time.Millisecond
		if errorsJSON.Valid && errorsJSON.String != "" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &record.Errors); err != nil {
				return nil, fmt.Errorf("parse cycle errors: %w", err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PruneCycles deletes all but the newest keep cycle records.
func (s *Store) PruneCycles(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		keep = 1
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM cycle_history WHERE id NOT IN (
            SELECT id FROM cycle_history ORDER BY started_at DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune cycles: %w", err)
	}
	return res.RowsAffected()
}
