// Package localstore provides a SQLite-backed entity.LocalStore for hosts
// that do not bring their own relational layer. Records are stored as opaque
// msgpack blobs keyed by entity type and identity, which keeps the sync
// engine free of any application schema.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"feltsync/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS local_records (
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    record      BLOB NOT NULL,
    updated_at  TEXT NOT NULL,
    PRIMARY KEY (entity_type, entity_id)
);
`

// Store persists entity records in SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes or connects to the records database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "records.db")
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
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the record for an entity, reporting existence.
func (s *Store) Get(ctx context.Context, entityType, id string) (map[string]any, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM local_records WHERE entity_type = ? AND entity_id = ?`,
		entityType, id)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read record: %w", err)
	}

	var record map[string]any
	if err := msgpack.Unmarshal(blob, &record); err != nil {
		return nil, false, fmt.Errorf("decode record: %w", err)
	}
	return record, true, nil
}

// Upsert writes the record under the entity identity.
func (s *Store) Upsert(ctx context.Context, entityType, id string, record map[string]any) error {
	blob, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_records (entity_type, entity_id, record, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(entity_type, entity_id) DO UPDATE SET
             record = excluded.record,
             updated_at = excluded.updated_at`,
		entityType, id, blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *Store) Delete(ctx context.Context, entityType, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_records WHERE entity_type = ? AND entity_id = ?`,
		entityType, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Count reports the number of stored records for an entity type. An empty
// type counts every record.
func (s *Store) Count(ctx context.Context, entityType string) (int, error) {
	query := `SELECT COUNT(*) FROM local_records`
	args := []any{}
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
