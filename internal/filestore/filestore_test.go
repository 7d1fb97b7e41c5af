package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

func testEntry(pos int64, ts time.Time) *model.AuditEntry {
	return &model.AuditEntry{
		ID:          fmt.Sprintf("e-%03d", pos),
		Position:    pos,
		Timestamp:   ts,
		Criticality: model.CriticalityLow,
		Checksum:    fmt.Sprintf("sha256:%03d", pos),
		PrevHash:    fmt.Sprintf("sha256:%03d", pos-1),
		Payload:     model.DecisionRecord{SessionID: "s-1", Confidence: 0.9},
	}
}

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		if err := s.Append(testEntry(i, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("read back %d entries, want 5", len(all))
	}
	for i, e := range all {
		if e.Position != int64(i+1) {
			t.Errorf("entry %d position = %d", i, e.Position)
		}
	}

	gens := s.Generations()
	if len(gens) != 1 {
		t.Fatalf("expected 1 generation, got %d", len(gens))
	}
	g := gens[0]
	if g.FirstID != "e-001" || g.LastID != "e-005" || g.Entries != 5 {
		t.Errorf("generation bounds: %+v", g)
	}
}

func TestRotationByEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxEntries: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Now().UTC()
	for i := int64(1); i <= 7; i++ {
		if err := s.Append(testEntry(i, base)); err != nil {
			t.Fatal(err)
		}
	}

	gens := s.Generations()
	if len(gens) != 3 {
		t.Fatalf("expected 3 generations after 7 appends at max 3, got %d", len(gens))
	}
	if !gens[0].Closed() || !gens[1].Closed() || gens[2].Closed() {
		t.Error("expected first two generations closed, third open")
	}

	// Positions stay contiguous across the rotation boundary.
	all, err := s.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range all {
		if e.Position != int64(i+1) {
			t.Fatalf("position gap at %d: got %d", i, e.Position)
		}
	}
	if gens[0].LastPos+1 != gens[1].FirstPos {
		t.Errorf("generation boundary gap: %d then %d", gens[0].LastPos, gens[1].FirstPos)
	}
}

func TestCompressionOnRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxEntries: 2, Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Now().UTC()
	for i := int64(1); i <= 3; i++ {
		if err := s.Append(testEntry(i, base)); err != nil {
			t.Fatal(err)
		}
	}

	gens := s.Generations()
	if !gens[0].Compressed || !strings.HasSuffix(gens[0].Path, ".gz") {
		t.Fatalf("closed generation not compressed: %+v", gens[0])
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimSuffix(gens[0].Path, ".gz"))); !os.IsNotExist(err) {
		t.Error("plain file should be removed after compression")
	}

	// Compressed generations decode transparently.
	entries, err := s.ReadGeneration(gens[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("read %d entries from compressed generation, want 2", len(entries))
	}
}

func TestResumeOpenGeneration(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxEntries: 10})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Now().UTC()
	for i := int64(1); i <= 4; i++ {
		if err := s.Append(testEntry(i, base)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen: the open generation continues, no new one is started.
	s2, err := Open(dir, Options{MaxEntries: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.Append(testEntry(5, base)); err != nil {
		t.Fatal(err)
	}

	gens := s2.Generations()
	if len(gens) != 1 {
		t.Fatalf("expected 1 generation after resume, got %d", len(gens))
	}
	all, err := s2.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("read %d entries after resume, want 5", len(all))
	}
}

func TestWriteCriticalCopy(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	e := testEntry(1, time.Now().UTC())
	e.Criticality = model.CriticalityCritical
	if err := s.WriteCriticalCopy(e); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "critical", e.ID+".json"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := model.DecodeEntry(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != e.ID || got.Criticality != model.CriticalityCritical {
		t.Errorf("critical copy differs: %+v", got)
	}
}

func TestRemoveAndArchiveGeneration(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxEntries: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Now().UTC()
	for i := int64(1); i <= 5; i++ {
		if err := s.Append(testEntry(i, base)); err != nil {
			t.Fatal(err)
		}
	}
	gens := s.Generations()
	if len(gens) != 3 {
		t.Fatalf("setup: expected 3 generations, got %d", len(gens))
	}

	// The open generation cannot be dropped.
	if err := s.RemoveGeneration(gens[2].Seq); err == nil {
		t.Error("removing the open generation must fail")
	}

	if err := s.RemoveGeneration(gens[0].Seq); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, gens[0].Path)); !os.IsNotExist(err) {
		t.Error("removed generation file still exists")
	}

	archiveDir := filepath.Join(dir, "archive")
	if err := s.ArchiveGeneration(gens[1].Seq, archiveDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, filepath.Base(gens[1].Path))); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	// Archiving relocates the generation but keeps its manifest slot.
	gens = s.Generations()
	if len(gens) != 2 {
		t.Fatalf("manifest lists %d generations, want archived + open", len(gens))
	}
	if !gens[0].Archived || !strings.HasPrefix(gens[0].Path, "archive"+string(os.PathSeparator)) {
		t.Errorf("archived generation not flagged/relocated: %+v", gens[0])
	}

	// Archived generations stay readable through their new path.
	entries, err := s.ReadGeneration(gens[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("read %d entries from archived generation, want 2", len(entries))
	}

	// And cannot be archived twice.
	if err := s.ArchiveGeneration(gens[0].Seq, archiveDir); err == nil {
		t.Error("re-archiving an archived generation must fail")
	}
}
