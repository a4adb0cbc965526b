package metadata_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"feltsync/internal/metadata"
	"feltsync/internal/testsupport"
)

func TestWatermarksStartAtZero(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	pull, err := store.LastPull(ctx, "clients")
	if err != nil {
		t.Fatalf("LastPull: %v", err)
	}
	if !pull.IsZero() {
		t.Fatalf("expected zero time for never-pulled type, got %v", pull)
	}
}

func TestWatermarksAdvanceMonotonically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	later := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := store.RecordPull(ctx, "clients", later); err != nil {
		t.Fatalf("RecordPull: %v", err)
	}
	// Recording an older timestamp must not move the watermark backwards.
	if err := store.RecordPull(ctx, "clients", earlier); err != nil {
		t.Fatalf("RecordPull older: %v", err)
	}

	pull, err := store.LastPull(ctx, "clients")
	if err != nil {
		t.Fatalf("LastPull: %v", err)
	}
	if !pull.Equal(later) {
		t.Fatalf("expected watermark %v, got %v", later, pull)
	}

	if err := store.RecordPush(ctx, "clients", earlier); err != nil {
		t.Fatalf("RecordPush: %v", err)
	}
	push, err := store.LastPush(ctx, "clients")
	if err != nil {
		t.Fatalf("LastPush: %v", err)
	}
	if !push.Equal(earlier) {
		t.Fatalf("expected push watermark %v, got %v", earlier, push)
	}
}

func TestAllListsEveryType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()
	if err := store.RecordPull(ctx, "routes", now); err != nil {
		t.Fatalf("RecordPull: %v", err)
	}
	if err := store.RecordPush(ctx, "clients", now); err != nil {
		t.Fatalf("RecordPush: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	if all[0].EntityType != "clients" || all[1].EntityType != "routes" {
		t.Fatalf("expected sorted types, got %v", all)
	}
}

func TestCycleHistoryRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	record := metadata.CycleRecord{
		ID:        "cycle-1",
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		Duration:  1500 * time.Millisecond,
		Pulled:    12,
		Pushed:    3,
		Errors:    []string{"settlements: pull: timeout"},
	}
	if err := store.RecordCycle(ctx, record); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}

	cycles, err := store.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	got := cycles[0]
	if got.ID != record.ID || got.Pulled != 12 || got.Pushed != 3 {
		t.Fatalf("unexpected cycle: %+v", got)
	}
	if got.Succeeded() {
		t.Fatal("cycle with errors must not report success")
	}
	if len(got.Errors) != 1 || got.Errors[0] != record.Errors[0] {
		t.Fatalf("unexpected errors: %v", got.Errors)
	}
}

func TestPruneCyclesKeepsNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		record := metadata.CycleRecord{
			ID:        fmt.Sprintf("cycle-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Duration:  time.Second,
		}
		if err := store.RecordCycle(ctx, record); err != nil {
			t.Fatalf("RecordCycle: %v", err)
		}
	}

	pruned, err := store.PruneCycles(ctx, 2)
	if err != nil {
		t.Fatalf("PruneCycles: %v", err)
	}
	if pruned != 3 {
		t.Fatalf("expected 3 pruned cycles, got %d", pruned)
	}

	cycles, err := store.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(cycles) != 2 || cycles[0].ID != "cycle-4" || cycles[1].ID != "cycle-3" {
		t.Fatalf("expected newest two cycles, got %v", cycles)
	}
}
