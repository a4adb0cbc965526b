// Package conflict decides how a pulled remote document combines with the
// local record it maps to. Approval state that was granted locally always
// survives a pull; everything else resolves last-write-wins with ties going
// to the remote side.
package conflict

import (
	"log/slog"
	"reflect"
	"time"

	"feltsync/internal/entity"
	"feltsync/internal/logging"
	"feltsync/internal/remote"
)

// Action describes what the syncer should do with the local record.
type Action string

const (
	// ActionInsert stores the remote document as a new local record.
	ActionInsert Action = "insert"
	// ActionApplyRemote overwrites the local record with the resolved record.
	ActionApplyRemote Action = "apply_remote"
	// ActionKeepLocal leaves the local record untouched.
	ActionKeepLocal Action = "keep_local"
)

// Resolution is the outcome of resolving one pulled document.
type Resolution struct {
	Action Action
	// Record is the record to store locally. Nil when Action is
	// ActionKeepLocal.
	Record map[string]any
	// PreservedFields lists approval fields whose local value overrode the
	// remote one.
	PreservedFields []string
	// RequeuePush reports that local approval state diverged from the remote
	// document and must be pushed back at high priority.
	RequeuePush bool
}

// Resolver applies the resolution policy for pulled documents.
type Resolver struct {
	log *slog.Logger
}

// NewResolver constructs a resolver. A nil logger disables logging.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{log: logger}
}

// Resolve combines a pulled document with the matching local record. When
// localFound is false the document is first-seen and stored as-is. Otherwise
// the newer side wins field-for-field, except approval fields declared by the
// descriptor, which keep their local value whenever it differs.
func (r *Resolver) Resolve(desc entity.Descriptor, local map[string]any, localFound bool, doc remote.Document) Resolution {
	if !localFound {
		return Resolution{Action: ActionInsert, Record: copyDocument(doc)}
	}

	localUpdated := remote.TimestampField(local, remote.KeyUpdatedAt)
	remoteUpdated := doc.UpdatedAt()

	if localWins(localUpdated, remoteUpdated) {
		r.log.Debug("pull kept newer local record",
			logging.String(logging.FieldEntityType, desc.Name),
			logging.String(logging.FieldEntityID, doc.LocalID()),
			logging.Time("local_updated", localUpdated),
			logging.Time("remote_updated", remoteUpdated))
		return Resolution{Action: ActionKeepLocal}
	}

	record := copyDocument(doc)
	var preserved []string
	for _, field := range desc.ApprovalFields {
		localValue, ok := local[field]
		if !ok {
			continue
		}
		if valuesEqual(localValue, record[field]) {
			continue
		}
		record[field] = localValue
		preserved = append(preserved, field)
	}

	if len(preserved) > 0 {
		r.log.Info("pull preserved local approval state",
			logging.String(logging.FieldEntityType, desc.Name),
			logging.String(logging.FieldEntityID, doc.LocalID()),
			logging.Any("fields", preserved))
	}
	return Resolution{
		Action:          ActionApplyRemote,
		Record:          record,
		PreservedFields: preserved,
		RequeuePush:     len(preserved) > 0,
	}
}

// localWins reports whether the local record is strictly newer. Equal
// timestamps favor the remote side so replays converge on the server's view.
func localWins(localUpdated, remoteUpdated time.Time) bool {
	if localUpdated.IsZero() {
		return false
	}
	return localUpdated.After(remoteUpdated)
}

func copyDocument(doc remote.Document) map[string]any {
	record := make(map[string]any, len(doc))
	for k, v := range doc {
		record[k] = v
	}
	return record
}

// valuesEqual compares field values while tolerating the numeric widening
// that JSON and msgpack decoding introduce.
func valuesEqual(a, b any) bool {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
