// Package syncer implements the pull and push halves of synchronization for
// one entity type. A single generic handler is parameterized by an entity
// descriptor; the orchestrator runs one handler per registered type in
// dependency order.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"feltsync/internal/conflict"
	"feltsync/internal/entity"
	"feltsync/internal/faults"
	"feltsync/internal/logging"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
	"feltsync/internal/remote"
)

// Deps carries the collaborators a handler needs. Logger and Now are
// optional.
type Deps struct {
	Queue    *queue.Store
	Metadata *metadata.Store
	Local    entity.LocalStore
	Remote   remote.Store
	Resolver *conflict.Resolver
	Backoff  Backoff
	Logger   *slog.Logger
	Now      func() time.Time
}

// Handler synchronizes one entity type against the remote document store.
type Handler struct {
	desc     entity.Descriptor
	queue    *queue.Store
	meta     *metadata.Store
	local    entity.LocalStore
	remote   remote.Store
	resolver *conflict.Resolver
	backoff  Backoff
	log      *slog.Logger
	now      func() time.Time
}

// New constructs a handler for the given entity type.
func New(desc entity.Descriptor, deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = conflict.NewResolver(logger)
	}
	return &Handler{
		desc:     desc,
		queue:    deps.Queue,
		meta:     deps.Metadata,
		local:    deps.Local,
		remote:   deps.Remote,
		resolver: resolver,
		backoff:  deps.Backoff,
		log:      logging.NewComponentLogger(logger, "syncer."+desc.Name),
		now:      now,
	}
}

// EntityType returns the entity type this handler serves.
func (h *Handler) EntityType() string { return h.desc.Name }

// PullResult summarizes one pull pass for an entity type.
type PullResult struct {
	// Applied counts documents written into the local store.
	Applied int
	// Inserted counts first-seen documents among Applied.
	Inserted int
	// KeptLocal counts documents discarded because the local record was newer.
	KeptLocal int
	// Skipped counts malformed documents without a local identity.
	Skipped int
	// Requeued counts high-priority pushes enqueued to restore approval state.
	Requeued int
}

// Pull fetches documents modified since the stored watermark and folds them
// into the local store. Pull is idempotent; replaying the same documents
// converges on the same local state.
func (h *Handler) Pull(ctx context.Context) (PullResult, error) {
	var result PullResult

	since, err := h.meta.LastPull(ctx, h.desc.Name)
	if err != nil {
		return result, faults.Wrap(faults.ErrStorage, "syncer", "load pull watermark "+h.desc.Name, err)
	}

	docs, err := h.remote.List(ctx, h.desc.Collection, since)
	if err != nil {
		return result, err
	}

	var watermark time.Time
	for _, doc := range docs {
		id := doc.LocalID()
		if id == "" {
			result.Skipped++
			h.log.Warn("skipping document without local identity",
				logging.String(logging.FieldEntityType, h.desc.Name))
			continue
		}

		local, found, err := h.local.Get(ctx, h.desc.Name, id)
		if err != nil {
			return result, faults.Wrap(faults.ErrStorage, "syncer", "read local "+h.desc.Name, err)
		}

		res := h.resolver.Resolve(h.desc, local, found, doc)
		switch res.Action {
		case conflict.ActionInsert:
			if err := h.local.Upsert(ctx, h.desc.Name, id, res.Record); err != nil {
				return result, faults.Wrap(faults.ErrStorage, "syncer", "insert local "+h.desc.Name, err)
			}
			result.Applied++
			result.Inserted++
		case conflict.ActionApplyRemote:
			if err := h.local.Upsert(ctx, h.desc.Name, id, res.Record); err != nil {
				return result, faults.Wrap(faults.ErrStorage, "syncer", "update local "+h.desc.Name, err)
			}
			result.Applied++
		case conflict.ActionKeepLocal:
			result.KeptLocal++
		}

		if res.RequeuePush {
			_, err := h.queue.Enqueue(ctx, queue.NewEntry{
				EntityType: h.desc.Name,
				EntityID:   id,
				Operation:  queue.OpUpdate,
				Record:     res.Record,
				Priority:   queue.PriorityHigh,
			})
			if err != nil {
				return result, faults.Wrap(faults.ErrStorage, "syncer", "requeue push "+h.desc.Name, err)
			}
			result.Requeued++
		}

		if updated := doc.UpdatedAt(); updated.After(watermark) {
			watermark = updated
		}
	}

	if !watermark.IsZero() {
		if err := h.meta.RecordPull(ctx, h.desc.Name, watermark); err != nil {
			return result, faults.Wrap(faults.ErrStorage, "syncer", "advance pull watermark "+h.desc.Name, err)
		}
	}

	if result.Applied > 0 || result.Skipped > 0 {
		h.log.Info("pull pass finished",
			logging.String(logging.FieldEntityType, h.desc.Name),
			logging.Int("applied", result.Applied),
			logging.Int("inserted", result.Inserted),
			logging.Int("skipped", result.Skipped),
			logging.Int("requeued", result.Requeued))
	}
	return result, nil
}

// PushResult summarizes one push pass for an entity type.
type PushResult struct {
	// Pushed counts entries acknowledged by the remote store.
	Pushed int
	// Failed counts entries rescheduled after a failure.
	Failed int
}

// Push drains the eligible queue entries for this entity type. Each entry
// succeeds or fails on its own; a failure reschedules that entry and the pass
// continues, except local storage faults, which abort.
func (h *Handler) Push(ctx context.Context) (PushResult, error) {
	var result PushResult

	entries, err := h.queue.EligibleForType(ctx, h.desc.Name, h.now())
	if err != nil {
		return result, faults.Wrap(faults.ErrStorage, "syncer", "dequeue "+h.desc.Name, err)
	}

	var lastPushed time.Time
	for _, entry := range entries {
		if err := h.queue.MarkProcessing(ctx, entry.ID); err != nil {
			return result, faults.Wrap(faults.ErrStorage, "syncer", "mark processing", err)
		}

		pushErr := h.pushEntry(ctx, entry)
		if pushErr == nil {
			if err := h.queue.MarkCompleted(ctx, entry.ID); err != nil {
				return result, faults.Wrap(faults.ErrStorage, "syncer", "mark completed", err)
			}
			result.Pushed++
			lastPushed = h.now()
			continue
		}
		if faults.IsStorage(pushErr) {
			return result, pushErr
		}

		attempt := entry.RetryCount + 1
		delay := h.backoff.Delay(attempt)
		if faults.IsRejected(pushErr) && h.backoff.Cap > delay {
			// Rejections need payload or permission fixes, so park them at
			// the maximum backoff instead of hot-retrying.
			delay = h.backoff.Cap
		}
		nextAttempt := h.now().Add(delay)
		if err := h.queue.MarkFailed(ctx, entry.ID, nextAttempt, pushErr.Error()); err != nil {
			return result, faults.Wrap(faults.ErrStorage, "syncer", "mark failed", err)
		}
		result.Failed++
		h.log.Warn("push attempt failed",
			logging.String(logging.FieldEntityType, entry.EntityType),
			logging.String(logging.FieldEntityID, entry.EntityID),
			logging.Int64(logging.FieldEntryID, entry.ID),
			logging.String(logging.FieldErrorKind, faults.Kind(pushErr)),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.Error(pushErr))
	}

	if !lastPushed.IsZero() {
		if err := h.meta.RecordPush(ctx, h.desc.Name, lastPushed); err != nil {
			return result, faults.Wrap(faults.ErrStorage, "syncer", "advance push watermark "+h.desc.Name, err)
		}
	}

	if result.Pushed > 0 || result.Failed > 0 {
		h.log.Info("push pass finished",
			logging.String(logging.FieldEntityType, h.desc.Name),
			logging.Int("pushed", result.Pushed),
			logging.Int("failed", result.Failed))
	}
	return result, nil
}

func (h *Handler) pushEntry(ctx context.Context, entry *queue.Entry) error {
	if entry.Operation == queue.OpDelete {
		return h.remote.Delete(ctx, h.desc.Collection, entry.EntityID)
	}

	record, err := entry.Snapshot()
	if err != nil {
		return faults.Wrap(faults.ErrRejected, "syncer", "decode payload", err)
	}
	doc := remote.Document(record)
	doc[remote.KeyLocalID] = entry.EntityID
	if _, ok := doc[remote.KeyUpdatedAt]; !ok {
		doc[remote.KeyUpdatedAt] = entry.CreatedAt.UnixMilli()
	}
	return h.remote.Put(ctx, h.desc.Collection, entry.EntityID, doc)
}
