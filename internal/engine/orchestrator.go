package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"feltsync/internal/config"
	"feltsync/internal/conflict"
	"feltsync/internal/connectivity"
	"feltsync/internal/entity"
	"feltsync/internal/faults"
	"feltsync/internal/logging"
	"feltsync/internal/metadata"
	"feltsync/internal/notifications"
	"feltsync/internal/queue"
	"feltsync/internal/remote"
	"feltsync/internal/syncer"
)

// ErrCycleRunning reports that a cycle is already in flight. The request is
// coalesced into a re-run after the current cycle finishes.
var ErrCycleRunning = errors.New("sync cycle already running")

// CycleSummary describes one finished (or skipped) cycle.
type CycleSummary struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	// Skipped reports that connectivity gating prevented the cycle.
	Skipped bool
	// Pulled counts documents applied to the local store across all types.
	Pulled int
	// Pushed counts queue entries acknowledged by the remote store.
	Pushed int
	// Failed counts push entries rescheduled for retry.
	Failed int
	// Errors collects per-type pass failures. The cycle still visits the
	// remaining types.
	Errors []string
}

// Orchestrator runs full sync cycles: a pull pass and a push pass over every
// registered entity type in dependency order. At most one cycle runs at a
// time; triggers during a running cycle coalesce into a single re-run.
type Orchestrator struct {
	cfg      *config.Config
	queue    *queue.Store
	meta     *metadata.Store
	registry *entity.Registry
	handlers map[string]*syncer.Handler
	gate     connectivity.Gate
	notifier notifications.Service
	log      *slog.Logger
	now      func() time.Time

	hub *StatusHub

	mu        sync.Mutex
	running   bool
	rerun     bool
	onEnqueue func()

	status statusState
}

// Options carries the orchestrator collaborators. Registry, Gate, Notifier,
// Logger, and Now fall back to sensible defaults when nil.
type Options struct {
	Config   *config.Config
	Queue    *queue.Store
	Metadata *metadata.Store
	Registry *entity.Registry
	Local    entity.LocalStore
	Remote   remote.Store
	Gate     connectivity.Gate
	Notifier notifications.Service
	Logger   *slog.Logger
	Now      func() time.Time
}

// New constructs an orchestrator with one syncer handler per registered
// entity type.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = entity.MustBuiltin()
	}
	gate := opts.Gate
	if gate == nil {
		gate = connectivity.NewHTTPProbe(opts.Config.Remote.BaseURL, logger)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	resolver := conflict.NewResolver(logger)
	handlers := make(map[string]*syncer.Handler, registry.Len())
	for _, name := range registry.SyncOrder() {
		desc, _ := registry.Get(name)
		handlers[name] = syncer.New(desc, syncer.Deps{
			Queue:    opts.Queue,
			Metadata: opts.Metadata,
			Local:    opts.Local,
			Remote:   opts.Remote,
			Resolver: resolver,
			Backoff:  syncer.NewBackoff(opts.Config),
			Logger:   logger,
			Now:      now,
		})
	}

	return &Orchestrator{
		cfg:      opts.Config,
		queue:    opts.Queue,
		meta:     opts.Metadata,
		registry: registry,
		handlers: handlers,
		gate:     gate,
		notifier: notifier,
		hub:      NewStatusHub(0),
		log:      logging.NewComponentLogger(logger, "engine"),
		now:      now,
	}
}

// Updates exposes the observable status stream. Each state transition and
// enqueue publishes an update carrying the outstanding-operation count.
func (o *Orchestrator) Updates() *StatusHub {
	return o.hub
}

// Enqueue appends a local mutation to the durable queue. When a scheduler
// hook is attached and the gate reports online, an immediate cycle is
// requested so the mutation reaches the remote promptly.
func (o *Orchestrator) Enqueue(ctx context.Context, req queue.NewEntry) (*queue.Entry, error) {
	if _, ok := o.registry.Get(req.EntityType); !ok {
		return nil, faults.Wrap(faults.ErrRejected, "engine", "enqueue unknown entity type "+req.EntityType, nil)
	}
	entry, err := o.queue.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	o.publishStatus(ctx)

	o.mu.Lock()
	hook := o.onEnqueue
	o.mu.Unlock()
	if hook != nil && o.gate.Online(ctx) {
		hook()
	}
	return entry, nil
}

// setEnqueueHook attaches the scheduler's trigger so mutations enqueued
// while online start a cycle without waiting for the next tick.
func (o *Orchestrator) setEnqueueHook(fn func()) {
	o.mu.Lock()
	o.onEnqueue = fn
	o.mu.Unlock()
}

// RunCycle executes one full sync cycle, then immediately re-runs it if
// triggers arrived while it was in flight. Returns ErrCycleRunning when a
// cycle is already executing; the caller's request is folded into a re-run.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleSummary, error) {
	o.mu.Lock()
	if o.running {
		o.rerun = true
		o.mu.Unlock()
		return CycleSummary{}, ErrCycleRunning
	}
	o.running = true
	o.mu.Unlock()

	var (
		summary CycleSummary
		err     error
	)
	for {
		summary, err = o.runOnce(ctx)

		o.mu.Lock()
		again := o.rerun && err == nil && ctx.Err() == nil
		o.rerun = false
		if !again {
			o.running = false
		}
		o.mu.Unlock()
		if !again {
			return summary, err
		}
		o.log.Info("re-running coalesced sync cycle")
	}
}

func (o *Orchestrator) runOnce(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{
		CycleID: uuid.NewString(),
		Started: o.now(),
	}

	if !o.gate.Online(ctx) {
		summary.Skipped = true
		o.log.Info("skipping sync cycle while offline",
			logging.String(logging.FieldCycleID, summary.CycleID))
		o.setStatus(ctx, StateIdle, "", summary)
		return summary, nil
	}

	o.log.Info("sync cycle started",
		logging.String(logging.FieldCycleID, summary.CycleID))

	order := o.registry.SyncOrder()

	o.setStatus(ctx, StatePulling, summary.CycleID, summary)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return o.cancelCycle(ctx, summary, err)
		}
		res, err := o.handlers[name].Pull(ctx)
		summary.Pulled += res.Applied
		if err != nil {
			if faults.IsStorage(err) {
				return o.abortCycle(ctx, summary, "pull "+name, err)
			}
			summary.Errors = append(summary.Errors, "pull "+name+": "+err.Error())
			o.log.Warn("pull pass failed",
				logging.String(logging.FieldCycleID, summary.CycleID),
				logging.String(logging.FieldEntityType, name),
				logging.String(logging.FieldErrorKind, faults.Kind(err)),
				logging.Error(err))
		}
	}

	o.setStatus(ctx, StatePushing, summary.CycleID, summary)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return o.cancelCycle(ctx, summary, err)
		}
		res, err := o.handlers[name].Push(ctx)
		summary.Pushed += res.Pushed
		summary.Failed += res.Failed
		if err != nil {
			if faults.IsStorage(err) {
				return o.abortCycle(ctx, summary, "push "+name, err)
			}
			summary.Errors = append(summary.Errors, "push "+name+": "+err.Error())
			o.log.Warn("push pass failed",
				logging.String(logging.FieldCycleID, summary.CycleID),
				logging.String(logging.FieldEntityType, name),
				logging.String(logging.FieldErrorKind, faults.Kind(err)),
				logging.Error(err))
		}
	}

	summary.Duration = o.now().Sub(summary.Started)
	o.recordCycle(ctx, summary)
	o.setStatus(ctx, StateIdle, "", summary)

	o.log.Info("sync cycle finished",
		logging.String(logging.FieldCycleID, summary.CycleID),
		logging.Duration("duration", summary.Duration),
		logging.Int("pulled", summary.Pulled),
		logging.Int("pushed", summary.Pushed),
		logging.Int("failed", summary.Failed),
		logging.Int("errors", len(summary.Errors)))

	if err := o.notifier.NotifyCycleCompleted(ctx, summary.Pulled, summary.Pushed, summary.Failed, summary.Duration); err != nil {
		o.log.Warn("cycle notification failed", logging.Error(err))
	}
	return summary, nil
}

// cancelCycle restores the idle status when the context ends mid-pass, so
// the hub and Status never report a stale pulling or pushing state. The
// publish uses a detached context because the cycle's own is already done.
func (o *Orchestrator) cancelCycle(ctx context.Context, summary CycleSummary, err error) (CycleSummary, error) {
	summary.Duration = o.now().Sub(summary.Started)
	o.setStatus(context.WithoutCancel(ctx), StateIdle, "", summary)
	return summary, err
}

// abortCycle handles local storage faults, which invalidate the rest of the
// cycle. The partial summary is still recorded.
func (o *Orchestrator) abortCycle(ctx context.Context, summary CycleSummary, phase string, err error) (CycleSummary, error) {
	summary.Duration = o.now().Sub(summary.Started)
	summary.Errors = append(summary.Errors, phase+": "+err.Error())
	o.log.Error("sync cycle aborted on storage fault",
		logging.String(logging.FieldCycleID, summary.CycleID),
		logging.String("phase", phase),
		logging.Error(err))
	o.recordCycle(ctx, summary)
	o.setStatus(ctx, StateIdle, "", summary)
	if notifyErr := o.notifier.NotifyError(ctx, err, phase); notifyErr != nil {
		o.log.Warn("error notification failed", logging.Error(notifyErr))
	}
	return summary, err
}

func (o *Orchestrator) recordCycle(ctx context.Context, summary CycleSummary) {
	record := metadata.CycleRecord{
		ID:        summary.CycleID,
		StartedAt: summary.Started,
		Duration:  summary.Duration,
		Pulled:    summary.Pulled,
		Pushed:    summary.Pushed,
		Errors:    summary.Errors,
	}
	if err := o.meta.RecordCycle(ctx, record); err != nil {
		o.log.Warn("failed to record cycle history", logging.Error(err))
		return
	}
	if limit := o.cfg.Sync.CycleHistoryLimit; limit > 0 {
		if _, err := o.meta.PruneCycles(ctx, limit); err != nil {
			o.log.Warn("failed to prune cycle history", logging.Error(err))
		}
	}
}

// ReconcileStartup resets PROCESSING entries abandoned by an earlier crash
// back to PENDING so they retry exactly once more.
func (o *Orchestrator) ReconcileStartup(ctx context.Context) error {
	timeout := time.Duration(o.cfg.Sync.StaleProcessingTimeout) * time.Second
	cutoff := o.now().Add(-timeout)
	reset, err := o.queue.ResetStaleProcessing(ctx, cutoff)
	if err != nil {
		return faults.Wrap(faults.ErrStorage, "engine", "reset stale processing", err)
	}
	if reset > 0 {
		o.log.Info("reset stale processing entries", logging.Int64("count", reset))
	}
	return nil
}

// PurgeCompleted removes completed entries older than the configured
// retention window.
func (o *Orchestrator) PurgeCompleted(ctx context.Context) (int64, error) {
	days := o.cfg.Sync.CompletedRetentionDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := o.now().AddDate(0, 0, -days)
	return o.queue.PurgeCompleted(ctx, cutoff)
}
