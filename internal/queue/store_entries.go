package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = `id, entity_type, entity_id, operation, payload, created_at,
    scheduled_for, retry_count, status, priority, last_error, updated_at`

// NewEntry describes a mutation to append to the queue.
type NewEntry struct {
	EntityType string
	EntityID   string
	Operation  Operation
	Record     map[string]any
	Priority   Priority
}

// Enqueue appends a PENDING entry capturing an immutable snapshot of the
// record. The entry becomes eligible immediately.
func (s *Store) Enqueue(ctx context.Context, req NewEntry) (*Entry, error) {
	if req.EntityType == "" {
		return nil, errors.New("entity type is required")
	}
	if req.EntityID == "" {
		return nil, errors.New("entity id is required")
	}
	if _, ok := ParseOperation(string(req.Operation)); !ok {
		return nil, fmt.Errorf("unknown operation %q", req.Operation)
	}

	payload, err := EncodePayload(req.Record)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_entries (
            entity_type, entity_id, operation, payload, created_at,
            scheduled_for, retry_count, status, priority, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		req.EntityType,
		req.EntityID,
		string(req.Operation),
		payload,
		timestamp,
		timestamp,
		StatusPending,
		int(req.Priority),
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue entry by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// DequeueEligible returns PENDING entries whose scheduled time has arrived,
// ordered by priority desc, scheduled time asc, insertion id asc. FAILED
// entries whose reschedule time has arrived are promoted back to PENDING
// first, so a single call surfaces everything retryable.
func (s *Store) DequeueEligible(ctx context.Context, now time.Time) ([]*Entry, error) {
	return s.dequeueEligible(ctx, now, "")
}

// EligibleForType behaves like DequeueEligible restricted to one entity type.
func (s *Store) EligibleForType(ctx context.Context, entityType string, now time.Time) ([]*Entry, error) {
	if entityType == "" {
		return nil, errors.New("entity type is required")
	}
	return s.dequeueEligible(ctx, now, entityType)
}

func (s *Store) dequeueEligible(ctx context.Context, now time.Time, entityType string) ([]*Entry, error) {
	cutoff := now.UTC().Format(time.RFC3339Nano)

	if err := s.promoteDueFailed(ctx, cutoff, entityType); err != nil {
		return nil, err
	}

	query := `SELECT ` + entryColumns + ` FROM queue_entries
        WHERE status = ? AND scheduled_for <= ?`
	args := []any{StatusPending, cutoff}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY priority DESC, scheduled_for ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query eligible entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// promoteDueFailed moves FAILED entries whose reschedule time arrived back to
// PENDING. This is the only legal FAILED transition.
func (s *Store) promoteDueFailed(ctx context.Context, cutoff, entityType string) error {
	query := `UPDATE queue_entries SET status = ?, updated_at = ?
        WHERE status = ? AND scheduled_for <= ?`
	args := []any{StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusFailed, cutoff}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("promote due failed entries: %w", err)
	}
	return nil
}

// MarkProcessing transitions a PENDING entry to PROCESSING. The transition is
// durable before the push proceeds.
func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusProcessing, StatusPending)
}

// MarkCompleted finalizes an entry after the remote write succeeded.
// COMPLETED is terminal.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusCompleted, StatusProcessing)
}

// MarkFailed parks an entry as FAILED with its next attempt time and failure
// detail. The retry counter increments; the payload is untouched.
func (s *Store) MarkFailed(ctx context.Context, id int64, nextAttempt time.Time, detail string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_entries
            SET status = ?, scheduled_for = ?, retry_count = retry_count + 1,
                last_error = ?, updated_at = ?
            WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		nextAttempt.UTC().Format(time.RFC3339Nano),
		detail,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark entry %d failed: %w", id, err)
	}
	return requireRow(res, id, StatusFailed)
}

func (s *Store) transition(ctx context.Context, id int64, to Status, from ...Status) error {
	args := []any{string(to), time.Now().UTC().Format(time.RFC3339Nano), id}
	query := `UPDATE queue_entries SET status = ?, updated_at = ? WHERE id = ?`
	if len(from) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(from)) + `)`
		for _, status := range from {
			args = append(args, string(status))
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition entry %d to %s: %w", id, to, err)
	}
	return requireRow(res, id, to)
}

func requireRow(res sql.Result, id int64, to Status) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %d not eligible for transition to %s", id, to)
	}
	return nil
}

// PendingCount reports entries still awaiting a successful push. This backs
// the user-visible pending-operations counter.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_entries WHERE status IN (?, ?, ?)`,
		StatusPending, StatusProcessing, StatusFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

// List returns the most recent entries, newest first, for inspection surfaces.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM queue_entries ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry        Entry
		operation    string
		status       string
		priority     int
		payload      []byte
		createdAt    string
		scheduledFor string
		updatedAt    string
		lastError    sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.EntityType,
		&entry.EntityID,
		&operation,
		&payload,
		&createdAt,
		&scheduledFor,
		&entry.RetryCount,
		&status,
		&priority,
		&lastError,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	entry.Operation = Operation(operation)
	entry.Status = Status(status)
	entry.Priority = Priority(priority)
	entry.Payload = payload
	entry.LastError = lastError.String

	var err error
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if entry.ScheduledFor, err = parseTimestamp(scheduledFor); err != nil {
		return nil, fmt.Errorf("parse scheduled_for: %w", err)
	}
	if entry.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &entry, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
