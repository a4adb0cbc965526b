package remote

import (
	"fmt"
	"time"
)

// Well-known document keys interpreted by the sync core. Everything else in a
// document is opaque payload.
const (
	// KeyLocalID carries the local record identity inside every document, so
	// pulls can resolve local<->remote identity without a side index.
	KeyLocalID = "local_id"
	// KeyUpdatedAt carries the document modification time in epoch millis.
	KeyUpdatedAt = "updated_at"
)

// Document is the remote store's representation of an entity: an opaque
// key->value map plus the well-known identity and timestamp fields.
type Document map[string]any

// LocalID extracts the local record identity. The empty string means the
// document is malformed and must be skipped.
func (d Document) LocalID() string {
	switch v := d[KeyLocalID].(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64.
		return fmt.Sprintf("%.0f", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// UpdatedAt extracts the document modification time. The zero time means the
// document carries no timestamp.
func (d Document) UpdatedAt() time.Time {
	return TimestampField(map[string]any(d), KeyUpdatedAt)
}

// TimestampField reads an epoch-millisecond field from a record map,
// tolerating the numeric types JSON and msgpack decoders produce.
func TimestampField(record map[string]any, key string) time.Time {
	switch v := record[key].(type) {
	case float64:
		if v <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(int64(v)).UTC()
	case int64:
		if v <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(v).UTC()
	case int:
		if v <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(int64(v)).UTC()
	case uint64:
		return time.UnixMilli(int64(v)).UTC()
	default:
		return time.Time{}
	}
}
