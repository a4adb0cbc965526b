package engine

import (
	"context"
	"sync"
	"time"
)

// StatusUpdate is one observable point on the engine's status stream: the
// current state plus the outstanding-operation count the application surfaces
// as its pending indicator.
type StatusUpdate struct {
	Sequence    uint64    `json:"seq"`
	Timestamp   time.Time `json:"ts"`
	State       State     `json:"state"`
	CycleID     string    `json:"cycle_id,omitempty"`
	Outstanding int       `json:"outstanding"`
}

// StatusHub stores recent status updates and wakes waiters when new ones
// arrive. Consumers poll Fetch with their last seen sequence instead of
// holding per-subscriber channels.
type StatusHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []StatusUpdate
	nextSeq  uint64
}

// NewStatusHub constructs a bounded in-memory status fan-out buffer.
func NewStatusHub(capacity int) *StatusHub {
	if capacity <= 0 {
		capacity = 128
	}
	h := &StatusHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a status update to the hub.
func (h *StatusHub) Publish(update StatusUpdate) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	update.Sequence = h.nextSeq
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, update)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Latest returns the most recent update, if any.
func (h *StatusHub) Latest() (StatusUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return StatusUpdate{}, false
	}
	return h.buffer[len(h.buffer)-1], true
}

// Fetch returns updates with sequence greater than since. When wait is true,
// Fetch blocks until at least one update is available or the context ends.
func (h *StatusHub) Fetch(ctx context.Context, since uint64, wait bool) ([]StatusUpdate, uint64, error) {
	if h == nil {
		return nil, since, nil
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				// Broadcast under the mutex so a waiter between its
				// ctx.Err check and cond.Wait cannot miss the wake-up.
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		updates, next := h.snapshotLocked(since)
		if len(updates) > 0 || !wait {
			return updates, next, nil
		}
		if ctx != nil && ctx.Err() != nil {
			return nil, since, ctx.Err()
		}
		h.cond.Wait()
	}
}

func (h *StatusHub) snapshotLocked(since uint64) ([]StatusUpdate, uint64) {
	next := since
	var updates []StatusUpdate
	for _, update := range h.buffer {
		if update.Sequence <= since {
			continue
		}
		updates = append(updates, update)
		next = update.Sequence
	}
	return updates, next
}
