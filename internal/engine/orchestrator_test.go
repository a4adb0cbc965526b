package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"feltsync/internal/config"
	"feltsync/internal/connectivity"
	"feltsync/internal/entity"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
	"feltsync/internal/remote"
	"feltsync/internal/testsupport"
)

func chainRegistry(t *testing.T) *entity.Registry {
	t.Helper()

	registry, err := entity.NewRegistry([]entity.Descriptor{
		{Name: "routes", Collection: "routes"},
		{Name: "clients", Collection: "clients", DependsOn: []string{"routes"}},
		{Name: "settlements", Collection: "settlements", DependsOn: []string{"clients"}, ApprovalFields: []string{"approved"}},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

type fixture struct {
	cfg    *config.Config
	queue  *queue.Store
	meta   *metadata.Store
	local  *testsupport.MemoryLocalStore
	remote *testsupport.MemoryRemote
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	return &fixture{
		cfg:    cfg,
		queue:  testsupport.MustOpenQueue(t, cfg),
		meta:   testsupport.MustOpenMetadata(t, cfg),
		local:  testsupport.NewMemoryLocalStore(),
		remote: testsupport.NewMemoryRemote(),
	}
}

func (f *fixture) orchestrator(t *testing.T, registry *entity.Registry, gate connectivity.Gate) *Orchestrator {
	t.Helper()

	return New(Options{
		Config:   f.cfg,
		Queue:    f.queue,
		Metadata: f.meta,
		Registry: registry,
		Local:    f.local,
		Remote:   f.remote,
		Gate:     gate,
	})
}

func TestRunCyclePushesInDependencyOrder(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))
	ctx := context.Background()

	// Enqueue in reverse dependency order; the cycle must still write
	// referenced records first.
	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "settlements", EntityID: "settlement-1",
		Operation: queue.OpCreate, Record: map[string]any{"client": "client-1"},
	})
	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "clients", EntityID: "client-1",
		Operation: queue.OpCreate, Record: map[string]any{"route": "route-1"},
	})
	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	})

	summary, err := orch.RunCycle(ctx)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Pushed != 3 {
		t.Fatalf("expected 3 pushes, got %+v", summary)
	}

	routeIdx := f.remote.WriteIndex("routes", "route-1")
	clientIdx := f.remote.WriteIndex("clients", "client-1")
	settlementIdx := f.remote.WriteIndex("settlements", "settlement-1")
	if routeIdx < 0 || clientIdx < 0 || settlementIdx < 0 {
		t.Fatalf("missing writes: %v", f.remote.Writes())
	}
	if !(routeIdx < clientIdx && clientIdx < settlementIdx) {
		t.Fatalf("dependency order violated: %v", f.remote.Writes())
	}
}

func TestRunCyclePullsAllTypes(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.remote.Seed("routes", "route-1", remote.Document{
		remote.KeyLocalID: "route-1", remote.KeyUpdatedAt: float64(now.UnixMilli()),
	})
	f.remote.Seed("clients", "client-1", remote.Document{
		remote.KeyLocalID: "client-1", remote.KeyUpdatedAt: float64(now.UnixMilli()),
	})
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))

	summary, err := orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Pulled != 2 {
		t.Fatalf("expected 2 pulled, got %+v", summary)
	}
	if f.local.Len() != 2 {
		t.Fatalf("expected 2 local records, got %d", f.local.Len())
	}
}

func TestRunCycleSkipsWhenOffline(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(false))

	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	})

	summary, err := orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !summary.Skipped {
		t.Fatal("cycle should be skipped offline")
	}
	if len(f.remote.Writes()) != 0 {
		t.Fatalf("offline cycle must not touch the remote: %v", f.remote.Writes())
	}

	cycles, err := f.meta.RecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 0 {
		t.Fatalf("skipped cycles are not recorded, got %d", len(cycles))
	}
}

func TestRunCycleRecordsHistory(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))

	summary, err := orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	cycles, err := f.meta.RecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle record, got %d", len(cycles))
	}
	if cycles[0].ID != summary.CycleID {
		t.Fatalf("cycle record id = %q, want %q", cycles[0].ID, summary.CycleID)
	}
	if !cycles[0].Succeeded() {
		t.Fatalf("clean cycle should report success: %+v", cycles[0])
	}
}

func TestRunCycleContinuesPastTypeFailures(t *testing.T) {
	f := newFixture(t)
	f.remote.FailPutFor("routes", "route-1", errors.New("connection refused"))
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))

	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	})
	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "clients", EntityID: "client-1",
		Operation: queue.OpCreate, Record: map[string]any{"route": "route-1"},
	})

	summary, err := orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Pushed != 1 || summary.Failed != 1 {
		t.Fatalf("expected one push and one failure, got %+v", summary)
	}
	if _, ok := f.remote.Document("clients", "client-1"); !ok {
		t.Fatal("later types must still push after an earlier failure")
	}
}

type blockingGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGate) Online(context.Context) bool {
	g.entered <- struct{}{}
	<-g.release
	return true
}

func TestRunCycleCoalescesConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	gate := &blockingGate{entered: make(chan struct{}, 4), release: make(chan struct{})}
	orch := f.orchestrator(t, chainRegistry(t), gate)

	done := make(chan error, 1)
	go func() {
		_, err := orch.RunCycle(context.Background())
		done <- err
	}()

	<-gate.entered
	if _, err := orch.RunCycle(context.Background()); !errors.Is(err, ErrCycleRunning) {
		t.Fatalf("expected ErrCycleRunning, got %v", err)
	}
	close(gate.release)

	if err := <-done; err != nil {
		t.Fatalf("blocked cycle returned error: %v", err)
	}

	cycles, err := f.meta.RecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("coalesced request should cause exactly one re-run, got %d cycles", len(cycles))
	}
}

func TestEnqueueRejectsUnknownEntityType(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))

	_, err := orch.Enqueue(context.Background(), queue.NewEntry{
		EntityType: "widgets", EntityID: "w1", Operation: queue.OpCreate,
	})
	if err == nil {
		t.Fatal("expected error for unknown entity type")
	}
}

func TestReconcileStartupResetsStaleProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	})
	if err := f.queue.MarkProcessing(ctx, entry.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	orch := New(Options{
		Config:   f.cfg,
		Queue:    f.queue,
		Metadata: f.meta,
		Registry: chainRegistry(t),
		Local:    f.local,
		Remote:   f.remote,
		Gate:     connectivity.Static(true),
		Now: func() time.Time {
			return time.Now().Add(time.Hour)
		},
	})
	if err := orch.ReconcileStartup(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stored, err := f.queue.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if stored.Status != queue.StatusPending {
		t.Fatalf("stale processing entry should reset to pending, got %s", stored.Status)
	}
}

func TestStatusReportsQueueHealth(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))

	testsupport.MustEnqueue(t, f.queue, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	})

	status, err := orch.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != StateIdle {
		t.Fatalf("expected idle state, got %s", status.State)
	}
	if status.Queue.Outstanding() != 1 {
		t.Fatalf("expected one outstanding entry, got %+v", status.Queue)
	}
	if status.LastCycle != nil {
		t.Fatal("no cycle ran yet")
	}
}

func TestUpdatesStreamTracksCycleProgress(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, chainRegistry(t), connectivity.Static(true))
	ctx := context.Background()

	if _, err := orch.Enqueue(ctx, queue.NewEntry{
		EntityType: "routes", EntityID: "route-1",
		Operation: queue.OpCreate, Record: map[string]any{"name": "downtown"},
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	updates, next, err := orch.Updates().Fetch(ctx, 0, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(updates) != 1 || updates[0].Outstanding != 1 {
		t.Fatalf("expected one update with outstanding=1, got %+v", updates)
	}

	if _, err := orch.RunCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	updates, _, err = orch.Updates().Fetch(ctx, next, false)
	if err != nil {
		t.Fatalf("fetch after cycle: %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("expected cycle updates on the stream")
	}
	last := updates[len(updates)-1]
	if last.State != StateIdle || last.Outstanding != 0 {
		t.Fatalf("expected drained idle state, got %+v", last)
	}
}

// cancelDuringPullRemote cancels the cycle context on the first List so the
// cycle observes cancellation between entity types.
type cancelDuringPullRemote struct {
	*testsupport.MemoryRemote
	cancel context.CancelFunc
}

func (r *cancelDuringPullRemote) List(ctx context.Context, collection string, since time.Time) ([]remote.Document, error) {
	r.cancel()
	return r.MemoryRemote.List(ctx, collection, since)
}

func TestRunCycleCancelledMidPassReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := New(Options{
		Config:   f.cfg,
		Queue:    f.queue,
		Metadata: f.meta,
		Registry: chainRegistry(t),
		Local:    f.local,
		Remote:   &cancelDuringPullRemote{MemoryRemote: f.remote, cancel: cancel},
		Gate:     connectivity.Static(true),
	})

	if _, err := orch.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	status, err := orch.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != StateIdle {
		t.Fatalf("expected idle after cancelled cycle, got %s", status.State)
	}

	latest, ok := orch.Updates().Latest()
	if !ok || latest.State != StateIdle {
		t.Fatalf("expected idle on the stream, got %+v ok=%v", latest, ok)
	}
}
