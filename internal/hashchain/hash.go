// Package hashchain computes entry checksums and maintains the
// append-only chain head. Each entry's checksum covers its canonical
// fields plus the previous entry's checksum, so altering any stored
// entry breaks the chain from that point forward.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Genesis is the prev_hash of the first entry in a fresh ledger.
const Genesis = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// HashBytes returns "sha256:<hex>" of the given bytes.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(h[:])
}

// PayloadDigest hashes the sanitized decision record. The digest, not
// the payload, participates in the chain, so verification sweeps over
// large histories only re-hash payloads once per entry.
func PayloadDigest(rec *model.DecisionRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return HashBytes(data), nil
}

// chainFields is the canonical checksum input. Field order is fixed by
// the struct declaration; the flags slice is sorted upstream. Never
// reorder these fields — doing so invalidates every stored checksum.
type chainFields struct {
	ID            string   `json:"id"`
	Timestamp     string   `json:"timestamp"`
	Criticality   int      `json:"criticality"`
	Flags         []string `json:"flags"`
	PayloadDigest string   `json:"payload_digest"`
	PrevHash      string   `json:"prev_hash"`
}

// EntryChecksum computes the checksum of an entry from its canonical
// fields. The entry's PayloadDigest and PrevHash must already be set.
func EntryChecksum(e *model.AuditEntry) (string, error) {
	cf := chainFields{
		ID:            e.ID,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Criticality:   int(e.Criticality),
		Flags:         e.Compliance.Flags,
		PayloadDigest: e.PayloadDigest,
		PrevHash:      e.PrevHash,
	}
	data, err := json.Marshal(cf)
	if err != nil {
		return "", fmt.Errorf("marshal chain fields: %w", err)
	}
	return HashBytes(data), nil
}
