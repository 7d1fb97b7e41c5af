package model

import (
	"encoding/json"
	"fmt"
)

// EncodeEntry is the single serialization point for audit entries. Both
// storage backends and the export path go through it, which guarantees
// that the bytes being hashed are the bytes being stored. encoding/json
// emits struct fields in declaration order and sorts map keys, so the
// output is stable for a given entry.
func EncodeEntry(e *AuditEntry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	return data, nil
}

// DecodeEntry parses an entry previously produced by EncodeEntry.
func DecodeEntry(data []byte) (*AuditEntry, error) {
	var e AuditEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}
