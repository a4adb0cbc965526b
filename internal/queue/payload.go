package queue

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodePayload serializes a record snapshot into the compact blob stored in
// the entry row.
func EncodePayload(record map[string]any) ([]byte, error) {
	if record == nil {
		record = map[string]any{}
	}
	data, err := msgpack.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload deserializes an entry payload blob back into a record map.
func DecodePayload(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var record map[string]any
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return record, nil
}
