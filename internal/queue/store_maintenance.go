package queue

import (
	"context"
	"fmt"
	"time"
)

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// ResetStaleProcessing returns PROCESSING entries older than cutoff to
// PENDING. Run at startup so entries abandoned by a crash mid-push are
// retried rather than stuck forever.
func (s *Store) ResetStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_entries
            SET status = ?, last_error = 'reset from stale processing', updated_at = ?
            WHERE status = ? AND updated_at < ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale processing: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed entries back to pending immediately, clearing the
// backoff schedule. With no ids, every failed entry is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_entries SET status = ?, scheduled_for = ?, updated_at = ? WHERE status = ?`,
			StatusPending, now, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed entries: %w", err)
		}
		return res.RowsAffected()
	}

	args := []any{StatusPending, now, now}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_entries SET status = ?, scheduled_for = ?, updated_at = ?
        WHERE status = '` + string(StatusFailed) + `' AND id IN (` + makePlaceholders(len(ids)) + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected entries: %w", err)
	}
	return res.RowsAffected()
}

// PurgeCompleted removes COMPLETED entries finished before cutoff used by the
// retention sweep. COMPLETED is terminal, so the rows carry no further state.
func (s *Store) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_entries WHERE status = ? AND updated_at < ?`,
		StatusCompleted,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purge completed entries: %w", err)
	}
	return res.RowsAffected()
}
