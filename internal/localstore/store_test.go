package localstore

import (
	"context"
	"testing"

	"feltsync/internal/testsupport"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	record := map[string]any{"name": "downtown", "active": true}
	if err := store.Upsert(ctx, "routes", "route-1", record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := store.Get(ctx, "routes", "route-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("record should exist")
	}
	if got["name"] != "downtown" {
		t.Fatalf("unexpected record: %#v", got)
	}
}

func TestGetMissingRecord(t *testing.T) {
	store := openStore(t)

	_, found, err := store.Get(context.Background(), "routes", "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("absent record must not report found")
	}
}

func TestUpsertReplacesExistingRecord(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "routes", "route-1", map[string]any{"name": "downtown"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.Upsert(ctx, "routes", "route-1", map[string]any{"name": "harbor"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, _, err := store.Get(ctx, "routes", "route-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["name"] != "harbor" {
		t.Fatalf("expected replacement, got %#v", got)
	}

	count, err := store.Count(ctx, "routes")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("upsert must not duplicate rows, have %d", count)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "routes", "route-1", map[string]any{"name": "downtown"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Delete(ctx, "routes", "route-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "routes", "route-1"); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}

	_, found, err := store.Get(ctx, "routes", "route-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("deleted record must be gone")
	}
}
