// Package queue persists pending sync mutations in SQLite and exposes helpers
// for driving their lifecycle.
//
// Every local create/update/delete that must reach the remote store becomes a
// durable Entry. Entries move PENDING -> PROCESSING -> COMPLETED, or back to
// PENDING through a FAILED reschedule with growing backoff. The payload is an
// immutable snapshot of the record at enqueue time, encoded with msgpack.
//
// Eligibility ordering is priority desc, scheduled time asc, insertion id asc,
// giving stable FIFO within a priority band. State transitions are durable
// before the caller proceeds, so a crash mid-push never loses an operation:
// stale PROCESSING rows are reset to PENDING by the startup reconciliation.
//
// Treat this package as the single source of truth for queue semantics; when
// you add statuses or columns, add a migration under migrations/.
package queue
