package remote

import (
	"context"
	"time"
)

// Store is the remote document API surface the sync core depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every document in the collection modified at or after
	// since. A zero since requests the full collection.
	List(ctx context.Context, collection string, since time.Time) ([]Document, error)
	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, collection, id string, doc Document) error
	// Delete removes the document stored under id. Deleting a document that
	// does not exist succeeds.
	Delete(ctx context.Context, collection, id string) error
}
