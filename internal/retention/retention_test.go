package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvoigt/decledger/internal/filestore"
	"github.com/mvoigt/decledger/internal/index"
	"github.com/mvoigt/decledger/internal/model"
)

// seedLedger fills a filestore+index pair with entries whose timestamps
// start at base, one per minute, rotating every 3 entries.
func seedLedger(t *testing.T, dir string, n int, base time.Time) (*filestore.Store, *index.Store) {
	t.Helper()
	files, err := filestore.Open(dir, filestore.Options{MaxEntries: 3})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := index.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		files.Close()
		idx.Close()
	})

	for i := 1; i <= n; i++ {
		e := &model.AuditEntry{
			ID:          fmt.Sprintf("e-%03d", i),
			Position:    int64(i),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Criticality: model.CriticalityLow,
			Checksum:    fmt.Sprintf("sha256:%03d", i),
			PrevHash:    fmt.Sprintf("sha256:%03d", i-1),
			Payload:     model.DecisionRecord{SessionID: "s-1", Confidence: 0.9},
		}
		if err := files.Append(e); err != nil {
			t.Fatal(err)
		}
		if err := idx.Insert(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	return files, idx
}

func TestSweepDeleteMode(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	files, idx := seedLedger(t, dir, 7, base)

	// Everything is ancient relative to now; only closed generations go.
	m := NewManager(files, idx, 24*time.Hour, ModeDelete, dir)
	now := base.Add(365 * 24 * time.Hour)

	report, err := m.Sweep(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if report.Swept != 2 {
		t.Fatalf("swept %d generations, want 2 (the closed ones)", report.Swept)
	}
	if report.Entries != 6 {
		t.Errorf("swept %d entries, want 6", report.Entries)
	}

	// Index rows for the swept positions are gone, the open tail stays.
	count, err := idx.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("index holds %d rows, want 1", count)
	}

	// The open generation survives.
	if got := len(files.Generations()); got != 1 {
		t.Errorf("%d generations remain, want 1", got)
	}
}

func TestSweepArchiveMode(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	files, idx := seedLedger(t, dir, 4, base)

	m := NewManager(files, idx, 24*time.Hour, ModeArchive, dir)
	report, err := m.Sweep(context.Background(), base.Add(365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if report.Swept != 1 {
		t.Fatalf("swept %d, want 1", report.Swept)
	}

	// The archived file moved; the index keeps its rows.
	archived, err := os.ReadDir(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 {
		t.Errorf("archive holds %d files, want 1", len(archived))
	}
	count, _ := idx.Count(context.Background())
	if count != 4 {
		t.Errorf("index holds %d rows, want 4 (archive keeps the index)", count)
	}

	// The archived generation is still readable in place.
	all, err := files.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("read %d entries after archiving, want 4", len(all))
	}

	// A second sweep does not touch already archived generations.
	report, err = m.Sweep(context.Background(), base.Add(365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if report.Swept != 0 {
		t.Errorf("re-swept %d archived generations, want 0", report.Swept)
	}
}

func TestSweepLeavesRecentGenerations(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().UTC().Add(-time.Hour)
	files, idx := seedLedger(t, dir, 7, base)

	m := NewManager(files, idx, 30*24*time.Hour, ModeDelete, dir)
	report, err := m.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if report.Swept != 0 {
		t.Errorf("swept %d recent generations, want 0", report.Swept)
	}
}

func TestTombstoneLog(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	files, idx := seedLedger(t, dir, 7, base)

	m := NewManager(files, idx, 24*time.Hour, ModeDelete, dir)
	if _, err := m.Sweep(context.Background(), base.Add(365*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	tombstones, err := m.Tombstones()
	if err != nil {
		t.Fatal(err)
	}
	if len(tombstones) != 2 {
		t.Fatalf("%d tombstones, want 2", len(tombstones))
	}
	ts := tombstones[0]
	if ts.Action != "deleted" || ts.Reason != "retention_policy" {
		t.Errorf("tombstone = %+v", ts)
	}
	if ts.FirstID != "e-001" || ts.LastID != "e-003" || ts.Entries != 3 {
		t.Errorf("tombstone bounds: %+v", ts)
	}
}

func TestTombstonesMissingLog(t *testing.T) {
	m := NewManager(nil, nil, time.Hour, ModeDelete, t.TempDir())
	tombstones, err := m.Tombstones()
	if err != nil {
		t.Fatal(err)
	}
	if tombstones != nil {
		t.Errorf("expected nil for missing log, got %v", tombstones)
	}
}

func TestZeroWindowDisablesSweep(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	files, idx := seedLedger(t, dir, 7, base)

	m := NewManager(files, idx, 0, ModeDelete, dir)
	report, err := m.Sweep(context.Background(), base.Add(365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if report.Swept != 0 {
		t.Errorf("zero window swept %d generations", report.Swept)
	}
}
