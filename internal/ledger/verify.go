package ledger

import (
	"context"
	"fmt"

	"github.com/mvoigt/decledger/internal/hashchain"
	"github.com/mvoigt/decledger/internal/model"
)

// Break reasons reported by VerifyChain.
const (
	BreakPayloadDigest = "payload_digest_mismatch"
	BreakChecksum      = "checksum_mismatch"
	BreakLinkage       = "prev_hash_mismatch"
	BreakPositionGap   = "position_gap"
	BreakHead          = "head_mismatch"
)

// BrokenLink describes one verification failure. A sweep reports every
// break it finds, not just the first.
type BrokenLink struct {
	Position int64  `json:"position"`
	EntryID  string `json:"entry_id"`
	Reason   string `json:"reason"`
	Want     string `json:"want"`
	Got      string `json:"got"`
}

// VerifyResult is the outcome of one verification sweep.
type VerifyResult struct {
	From    int64        `json:"from"`
	To      int64        `json:"to"`
	Checked int          `json:"checked"`
	Intact  bool         `json:"intact"`
	Breaks  []BrokenLink `json:"breaks,omitempty"`
}

// VerifyChain re-verifies the stored chain between two entry ids,
// inclusive. Empty ids mean the chain's ends. For each entry the
// payload digest and checksum are recomputed from stored data and the
// linkage to the previous entry is checked; the first entry of a
// partial range is anchored on its own stored prev_hash, which is only
// required to be the genesis hash at position 1 (earlier positions may
// have been removed by retention).
func (l *Ledger) VerifyChain(ctx context.Context, fromID, toID string) (*VerifyResult, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	fromPos := int64(1)
	if fromID != "" {
		pos, ok, err := l.idx.PositionOf(ctx, fromID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("verify: unknown entry id %s", fromID)
		}
		fromPos = pos
	}
	toPos := int64(0)
	if toID != "" {
		pos, ok, err := l.idx.PositionOf(ctx, toID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("verify: unknown entry id %s", toID)
		}
		toPos = pos
	}

	entries, err := l.idx.Range(ctx, fromPos, toPos)
	if err != nil {
		return nil, &StorageUnavailableError{Backend: "index", Err: err}
	}

	res := &VerifyResult{From: fromPos, To: toPos, Checked: len(entries), Intact: true}
	if len(entries) == 0 {
		return res, nil
	}
	res.From = entries[0].Position
	res.To = entries[len(entries)-1].Position

	var prev *model.AuditEntry
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		digest, err := hashchain.PayloadDigest(&e.Payload)
		if err != nil {
			return nil, err
		}
		if digest != e.PayloadDigest {
			res.addBreak(e, BreakPayloadDigest, e.PayloadDigest, digest)
		}

		checksum, err := hashchain.EntryChecksum(e)
		if err != nil {
			return nil, err
		}
		if checksum != e.Checksum {
			res.addBreak(e, BreakChecksum, e.Checksum, checksum)
		}

		switch {
		case prev == nil:
			if e.Position == 1 && e.PrevHash != hashchain.Genesis {
				res.addBreak(e, BreakLinkage, hashchain.Genesis, e.PrevHash)
			}
		case e.Position != prev.Position+1:
			res.addBreak(e, BreakPositionGap,
				fmt.Sprintf("position %d", prev.Position+1),
				fmt.Sprintf("position %d", e.Position))
		case e.PrevHash != prev.Checksum:
			res.addBreak(e, BreakLinkage, prev.Checksum, e.PrevHash)
		}
		prev = e
	}

	// A sweep that reaches the newest entry must agree with the live
	// chain head.
	if toID == "" {
		if snap := l.snapshot.Load(); snap.Length > 0 && prev.Checksum != snap.LatestHash {
			res.addBreak(prev, BreakHead, snap.LatestHash, prev.Checksum)
		}
	}
	return res, nil
}

func (r *VerifyResult) addBreak(e *model.AuditEntry, reason, want, got string) {
	r.Intact = false
	r.Breaks = append(r.Breaks, BrokenLink{
		Position: e.Position,
		EntryID:  e.ID,
		Reason:   reason,
		Want:     want,
		Got:      got,
	})
}

// Err converts a verification result into an error, nil when intact.
func (r *VerifyResult) Err() error {
	if r.Intact {
		return nil
	}
	return &ChainIntegrityError{From: r.From, To: r.To, Breaks: len(r.Breaks)}
}
