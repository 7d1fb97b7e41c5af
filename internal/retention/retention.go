// Package retention enforces the retention window over whole file
// generations. Deleting individual chained entries would break chain
// verification, so expiry operates at generation granularity and every
// removal is documented by a tombstone in a deletion log kept outside
// the chain.
package retention

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvoigt/decledger/internal/filestore"
	"github.com/mvoigt/decledger/internal/index"
)

// Mode selects what happens to an expired generation.
type Mode string

const (
	ModeArchive Mode = "archive" // move the generation file to the archive directory
	ModeDelete  Mode = "delete"  // remove the generation file and its index rows
)

// Tombstone documents one removed or archived generation. Tombstones
// live in deletions.log, outside the hash chain, so the gap they
// describe stays auditable without pretending the chain is unbroken.
type Tombstone struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Seq       int       `json:"generation"`
	FirstID   string    `json:"first_id"`
	LastID    string    `json:"last_id"`
	FirstPos  int64     `json:"first_pos"`
	LastPos   int64     `json:"last_pos"`
	Entries   int       `json:"entries"`
	Reason    string    `json:"reason"`
}

// Report summarizes one sweep.
type Report struct {
	Swept      int         `json:"swept"`
	Entries    int         `json:"entries"`
	Mode       Mode        `json:"mode"`
	Cutoff     time.Time   `json:"cutoff"`
	Tombstones []Tombstone `json:"tombstones,omitempty"`
}

// Manager runs periodic retention sweeps.
type Manager struct {
	files  *filestore.Store
	idx    *index.Store
	window time.Duration
	mode   Mode
	dir    string
}

// NewManager creates a retention Manager. dir is the ledger root; the
// archive directory and deletion log live under it.
func NewManager(files *filestore.Store, idx *index.Store, window time.Duration, mode Mode, dir string) *Manager {
	if mode == "" {
		mode = ModeArchive
	}
	return &Manager{files: files, idx: idx, window: window, mode: mode, dir: dir}
}

// Sweep finds closed generations that lie entirely outside the
// retention window and archives or deletes them. Generations are only
// ever handled whole; an expired generation whose newest entry is still
// inside the window is left alone.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (*Report, error) {
	cutoff := now.Add(-m.window)
	report := &Report{Mode: m.mode, Cutoff: cutoff}
	if m.window <= 0 {
		return report, nil
	}

	for _, g := range m.files.Generations() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !g.Closed() || g.Archived || g.Entries == 0 || !g.LastTime.Before(cutoff) {
			continue
		}

		action := "archived"
		switch m.mode {
		case ModeDelete:
			action = "deleted"
			if err := m.files.RemoveGeneration(g.Seq); err != nil {
				return report, err
			}
			if _, err := m.idx.DeleteRange(ctx, g.FirstPos, g.LastPos); err != nil {
				return report, err
			}
		default:
			if err := m.files.ArchiveGeneration(g.Seq, filepath.Join(m.dir, "archive")); err != nil {
				return report, err
			}
		}

		ts := Tombstone{
			Timestamp: now.UTC(),
			Action:    action,
			Seq:       g.Seq,
			FirstID:   g.FirstID,
			LastID:    g.LastID,
			FirstPos:  g.FirstPos,
			LastPos:   g.LastPos,
			Entries:   g.Entries,
			Reason:    "retention_policy",
		}
		if err := m.logTombstone(ts); err != nil {
			return report, err
		}
		report.Swept++
		report.Entries += g.Entries
		report.Tombstones = append(report.Tombstones, ts)
	}
	return report, nil
}

// logTombstone appends one tombstone line to deletions.log and syncs.
func (m *Manager) logTombstone(ts Tombstone) error {
	line, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshal tombstone: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(m.dir, "deletions.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open deletion log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write tombstone: %w", err)
	}
	return f.Sync()
}

// Tombstones reads the deletion log, oldest first. A missing log means
// nothing has ever been removed.
func (m *Manager) Tombstones() ([]Tombstone, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, "deletions.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read deletion log: %w", err)
	}
	var out []Tombstone
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ts Tombstone
		if err := dec.Decode(&ts); err != nil {
			return nil, fmt.Errorf("parse deletion log: %w", err)
		}
		out = append(out, ts)
	}
	return out, nil
}
