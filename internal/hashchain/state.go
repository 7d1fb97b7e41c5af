package hashchain

import (
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// State tracks the chain head for one ledger instance. It is not safe
// for concurrent use; the ledger guards it with its write lock and
// publishes immutable snapshots to readers.
type State struct {
	latestHash  string
	length      int64
	checkpoints []model.Checkpoint
	interval    int
}

// NewState starts a fresh chain at the genesis hash. interval is the
// number of entries between verification checkpoints; zero disables
// checkpointing.
func NewState(interval int) *State {
	return &State{latestHash: Genesis, interval: interval}
}

// Resume restores the chain head from the stored tail, used at ledger
// startup when the index already holds entries.
func Resume(latestHash string, length int64, interval int) *State {
	if latestHash == "" {
		return NewState(interval)
	}
	return &State{latestHash: latestHash, length: length, interval: interval}
}

// LatestHash returns the checksum of the most recent entry, or the
// genesis hash for an empty chain.
func (s *State) LatestHash() string { return s.latestHash }

// Length returns the number of chained entries.
func (s *State) Length() int64 { return s.length }

// NextPosition returns the position the next appended entry will take.
func (s *State) NextPosition() int64 { return s.length + 1 }

// Advance moves the chain head after a fully durable write. It must only
// be called once both backends have acknowledged the entry.
func (s *State) Advance(checksum string, at time.Time) {
	s.latestHash = checksum
	s.length++
	if s.interval > 0 && s.length%int64(s.interval) == 0 {
		s.checkpoints = append(s.checkpoints, model.Checkpoint{
			Position:  s.length,
			Hash:      checksum,
			Timestamp: at.UTC(),
		})
	}
}

// Snapshot returns an immutable copy for lock-free readers.
func (s *State) Snapshot() *model.ChainState {
	cps := make([]model.Checkpoint, len(s.checkpoints))
	copy(cps, s.checkpoints)
	return &model.ChainState{
		LatestHash:  s.latestHash,
		Length:      s.length,
		Checkpoints: cps,
	}
}
