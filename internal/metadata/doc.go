// Package metadata tracks per-entity-type sync watermarks and cycle history.
//
// The last-pull timestamp is the low-water-mark for incremental fetches: pull
// handlers ask the remote store only for documents modified after it. The
// last-push timestamp records when queued mutations last reached the remote.
// Both advance monotonically. The cycle_history table is the observability
// side channel behind the last-sync-status indicator.
package metadata
