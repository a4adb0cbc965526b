package queue

import (
	"strings"
	"time"
)

// Operation identifies the kind of mutation an entry carries.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation converts a string into a known Operation.
func ParseOperation(value string) (Operation, bool) {
	normalized := Operation(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case OpCreate, OpUpdate, OpDelete:
		return normalized, true
	}
	return "", false
}

// Status represents the lifecycle of a queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusCompleted  Status = "completed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusFailed, StatusCompleted}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Priority orders entries within the eligible set. Higher sorts first.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

func (p Priority) String() string {
	if p >= PriorityHigh {
		return "high"
	}
	return "normal"
}

// Entry represents one pending mutation persisted in SQLite.
//
// The payload blob is immutable once written; only status, retry bookkeeping,
// and the scheduled attempt time mutate afterwards.
type Entry struct {
	ID           int64
	EntityType   string
	EntityID     string
	Operation    Operation
	Payload      []byte
	CreatedAt    time.Time
	ScheduledFor time.Time
	RetryCount   int
	Status       Status
	Priority     Priority
	LastError    string
	UpdatedAt    time.Time
}

// Snapshot decodes the entry payload into the record captured at enqueue time.
func (e *Entry) Snapshot() (map[string]any, error) {
	return DecodePayload(e.Payload)
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Outstanding counts entries still awaiting a successful push.
func (h HealthSummary) Outstanding() int {
	return h.Pending + h.Processing + h.Failed
}
