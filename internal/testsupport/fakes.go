package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"feltsync/internal/remote"
)

// MemoryLocalStore is an in-memory entity.LocalStore for tests.
type MemoryLocalStore struct {
	mu      sync.Mutex
	records map[string]map[string]any

	// FailNext, when set, makes the next store call return the error and
	// clears itself.
	FailNext error
}

// NewMemoryLocalStore returns an empty in-memory local store.
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{records: make(map[string]map[string]any)}
}

func recordKey(entityType, id string) string {
	return entityType + "/" + id
}

func (s *MemoryLocalStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *MemoryLocalStore) Get(_ context.Context, entityType, id string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, false, err
	}
	record, ok := s.records[recordKey(entityType, id)]
	if !ok {
		return nil, false, nil
	}
	return copyRecord(record), true, nil
}

func (s *MemoryLocalStore) Upsert(_ context.Context, entityType, id string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.records[recordKey(entityType, id)] = copyRecord(record)
	return nil
}

func (s *MemoryLocalStore) Delete(_ context.Context, entityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.records, recordKey(entityType, id))
	return nil
}

// Seed stores a record directly, bypassing failure injection.
func (s *MemoryLocalStore) Seed(entityType, id string, record map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(entityType, id)] = copyRecord(record)
}

// Len reports the number of stored records.
func (s *MemoryLocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func copyRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}

// RemoteWrite records one mutation observed by MemoryRemote, in arrival order.
type RemoteWrite struct {
	Collection string
	ID         string
	Delete     bool
}

// MemoryRemote is an in-memory remote.Store that records write order, which
// dependency-ordering tests inspect.
type MemoryRemote struct {
	mu          sync.Mutex
	collections map[string]map[string]remote.Document
	writes      []RemoteWrite

	// FailNext, when set, makes the next call return the error and clears
	// itself.
	FailNext error
	// FailPut maps collection/id keys to persistent per-document errors.
	FailPut map[string]error
}

// NewMemoryRemote returns an empty in-memory remote store.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		collections: make(map[string]map[string]remote.Document),
		FailPut:     make(map[string]error),
	}
}

func (r *MemoryRemote) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

func (r *MemoryRemote) List(_ context.Context, collection string, since time.Time) ([]remote.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	var docs []remote.Document
	for _, doc := range r.collections[collection] {
		if !since.IsZero() && doc.UpdatedAt().Before(since) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *MemoryRemote) Put(_ context.Context, collection, id string, doc remote.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if err := r.FailPut[recordKey(collection, id)]; err != nil {
		return err
	}
	if r.collections[collection] == nil {
		r.collections[collection] = make(map[string]remote.Document)
	}
	stored := make(remote.Document, len(doc))
	for k, v := range doc {
		stored[k] = v
	}
	r.collections[collection][id] = stored
	r.writes = append(r.writes, RemoteWrite{Collection: collection, ID: id})
	return nil
}

func (r *MemoryRemote) Delete(_ context.Context, collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	delete(r.collections[collection], id)
	r.writes = append(r.writes, RemoteWrite{Collection: collection, ID: id, Delete: true})
	return nil
}

// Seed stores a document directly, bypassing failure injection and the write
// log.
func (r *MemoryRemote) Seed(collection, id string, doc remote.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collections[collection] == nil {
		r.collections[collection] = make(map[string]remote.Document)
	}
	r.collections[collection][id] = doc
}

// Document returns a stored document, failing the test caller on absence via
// the second return.
func (r *MemoryRemote) Document(collection, id string) (remote.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.collections[collection][id]
	return doc, ok
}

// Writes returns a copy of the recorded write order.
func (r *MemoryRemote) Writes() []RemoteWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RemoteWrite, len(r.writes))
	copy(out, r.writes)
	return out
}

// WriteIndex returns the position of the first write against collection/id,
// or -1 when it never happened.
func (r *MemoryRemote) WriteIndex(collection, id string) int {
	for i, w := range r.Writes() {
		if w.Collection == collection && w.ID == id {
			return i
		}
	}
	return -1
}

// FailPutFor registers a persistent failure for one document.
func (r *MemoryRemote) FailPutFor(collection, id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailPut[recordKey(collection, id)] = err
}

// String implements fmt.Stringer for test diagnostics.
func (w RemoteWrite) String() string {
	if w.Delete {
		return fmt.Sprintf("delete %s/%s", w.Collection, w.ID)
	}
	return fmt.Sprintf("put %s/%s", w.Collection, w.ID)
}
