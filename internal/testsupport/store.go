package testsupport

import (
	"context"
	"testing"

	"feltsync/internal/config"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenMetadata opens a metadata.Store for tests and registers cleanup.
func MustOpenMetadata(t testing.TB, cfg *config.Config) *metadata.Store {
	t.Helper()

	store, err := metadata.Open(cfg)
	if err != nil {
		t.Fatalf("metadata.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue appends an entry for tests using the provided store.
func MustEnqueue(t testing.TB, store *queue.Store, req queue.NewEntry) *queue.Entry {
	t.Helper()

	entry, err := store.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return entry
}
