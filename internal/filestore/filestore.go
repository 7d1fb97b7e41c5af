// Package filestore is the durable append-only backend: one JSONL file
// per rotation generation, a manifest mapping generations to files and
// entry ranges, and optional gzip compression on rotation. Whole
// generations are the unit of archival and deletion; individual entries
// are never removed from a generation file.
package filestore

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Options bound a generation's size. Zero values fall back to defaults.
type Options struct {
	MaxEntries int
	MaxBytes   int64
	Compress   bool
}

const (
	defaultMaxEntries = 10000
	defaultMaxBytes   = 64 << 20
	entriesDirName    = "entries"
	criticalDirName   = "critical"
)

// Store owns the generation files and the manifest. All methods are
// safe for concurrent use.
type Store struct {
	dir      string
	opts     Options
	mu       sync.Mutex
	manifest *Manifest
	cur      *os.File
}

// Open opens the file store rooted at dir, resuming the current
// generation from the manifest or starting generation 1.
func Open(dir string, opts Options) (*Store, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if err := os.MkdirAll(filepath.Join(dir, entriesDirName), 0700); err != nil {
		return nil, fmt.Errorf("create entries directory: %w", err)
	}

	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{dir: dir, opts: opts, manifest: m}

	if len(m.Generations) == 0 || m.Generations[len(m.Generations)-1].Closed() {
		if err := s.openNextGeneration(); err != nil {
			return nil, err
		}
	} else {
		cur := &m.Generations[len(m.Generations)-1]
		f, err := os.OpenFile(filepath.Join(dir, cur.Path),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("reopen generation %d: %w", cur.Seq, err)
		}
		s.cur = f
	}
	return s, nil
}

// current returns the open generation. Callers hold s.mu.
func (s *Store) current() *Generation {
	return &s.manifest.Generations[len(s.manifest.Generations)-1]
}

// openNextGeneration starts a fresh generation file and records it in
// the manifest. Callers hold s.mu (or are inside Open).
func (s *Store) openNextGeneration() error {
	seq := 1
	if n := len(s.manifest.Generations); n > 0 {
		seq = s.manifest.Generations[n-1].Seq + 1
	}
	rel := filepath.Join(entriesDirName, fmt.Sprintf("entries-%06d.jsonl", seq))
	f, err := os.OpenFile(filepath.Join(s.dir, rel),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open generation %d: %w", seq, err)
	}
	s.manifest.Generations = append(s.manifest.Generations, Generation{Seq: seq, Path: rel})
	if err := writeManifest(s.dir, s.manifest); err != nil {
		f.Close()
		return err
	}
	s.cur = f
	return nil
}

// Append writes one entry line, syncs it to disk, and rotates the
// generation when it crosses the configured entry or byte threshold.
func (s *Store) Append(e *model.AuditEntry) error {
	line, err := model.EncodeEntry(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return fmt.Errorf("append entry %s: file store is closed", e.ID)
	}
	if _, err := s.cur.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append entry %s: %w", e.ID, err)
	}
	if err := s.cur.Sync(); err != nil {
		return fmt.Errorf("sync entry %s: %w", e.ID, err)
	}

	g := s.current()
	if g.Entries == 0 {
		g.FirstID = e.ID
		g.FirstPos = e.Position
		g.FirstTime = e.Timestamp.UTC()
	}
	g.LastID = e.ID
	g.LastPos = e.Position
	g.LastTime = e.Timestamp.UTC()
	g.Entries++
	g.Bytes += int64(len(line)) + 1

	if g.Entries >= s.opts.MaxEntries || g.Bytes >= s.opts.MaxBytes {
		return s.rotate()
	}
	return writeManifest(s.dir, s.manifest)
}

// rotate closes the current generation, optionally compresses it, and
// opens the next one. Callers hold s.mu.
func (s *Store) rotate() error {
	g := s.current()
	if err := s.cur.Close(); err != nil {
		return fmt.Errorf("close generation %d: %w", g.Seq, err)
	}
	now := time.Now().UTC()
	g.ClosedAt = &now

	if s.opts.Compress {
		if err := s.compressGeneration(g); err != nil {
			return err
		}
	}
	return s.openNextGeneration()
}

// compressGeneration gzips a closed generation file in place and
// removes the plain file. Callers hold s.mu.
func (s *Store) compressGeneration(g *Generation) error {
	src := filepath.Join(s.dir, g.Path)
	dst := src + ".gz"

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("compress generation %d: %w", g.Seq, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("compress generation %d: %w", g.Seq, err)
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		return fmt.Errorf("compress generation %d: %w", g.Seq, err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finish compressing generation %d: %w", g.Seq, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finish compressing generation %d: %w", g.Seq, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove uncompressed generation %d: %w", g.Seq, err)
	}
	g.Path += ".gz"
	g.Compressed = true
	return nil
}

// WriteCriticalCopy stores an additional standalone copy of a critical
// entry under critical/, outside the rotation cycle, so the highest-tier
// records survive even a botched retention run.
func (s *Store) WriteCriticalCopy(e *model.AuditEntry) error {
	data, err := model.EncodeEntry(e)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.dir, criticalDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create critical directory: %w", err)
	}
	path := filepath.Join(dir, e.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write critical copy %s: %w", e.ID, err)
	}
	return nil
}

// Generations returns a copy of the manifest's generation list.
func (s *Store) Generations() []Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Generation, len(s.manifest.Generations))
	copy(out, s.manifest.Generations)
	return out
}

// RemoveGeneration deletes a closed generation's file and drops it from
// the manifest. The caller is responsible for writing the tombstone.
func (s *Store) RemoveGeneration(seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropGeneration(seq, func(path string) error {
		return os.Remove(path)
	})
}

// ArchiveGeneration moves a closed generation's file into archiveDir
// and marks it archived in the manifest. Archived generations keep
// their manifest slot and their index rows, and stay readable through
// their new path.
func (s *Store) ArchiveGeneration(seq int, archiveDir string) error {
	if err := os.MkdirAll(archiveDir, 0700); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.manifest.Generations {
		g := &s.manifest.Generations[i]
		if g.Seq != seq {
			continue
		}
		if !g.Closed() {
			return fmt.Errorf("generation %d is still open", seq)
		}
		if g.Archived {
			return fmt.Errorf("generation %d is already archived", seq)
		}
		dst := filepath.Join(archiveDir, filepath.Base(g.Path))
		if err := os.Rename(s.resolve(g.Path), dst); err != nil {
			return fmt.Errorf("archive generation %d: %w", seq, err)
		}
		if rel, err := filepath.Rel(s.dir, dst); err == nil {
			g.Path = rel
		} else {
			g.Path = dst
		}
		g.Archived = true
		return writeManifest(s.dir, s.manifest)
	}
	return fmt.Errorf("generation %d not in manifest", seq)
}

// dropGeneration applies dispose to the generation file and rewrites
// the manifest without it. Callers hold s.mu.
func (s *Store) dropGeneration(seq int, dispose func(path string) error) error {
	for i := range s.manifest.Generations {
		g := &s.manifest.Generations[i]
		if g.Seq != seq {
			continue
		}
		if !g.Closed() {
			return fmt.Errorf("generation %d is still open", seq)
		}
		if err := dispose(s.resolve(g.Path)); err != nil {
			return fmt.Errorf("dispose generation %d: %w", seq, err)
		}
		s.manifest.Generations = append(
			s.manifest.Generations[:i], s.manifest.Generations[i+1:]...)
		return writeManifest(s.dir, s.manifest)
	}
	return fmt.Errorf("generation %d not in manifest", seq)
}

// TotalSize returns the on-disk size of all generation files.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, g := range s.manifest.Generations {
		if info, err := os.Stat(s.resolve(g.Path)); err == nil {
			total += info.Size()
		}
	}
	return total
}

// resolve turns a manifest path into a filesystem path. Paths are
// normally relative to the store root; an archive directory outside it
// is recorded absolute.
func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}

// Close flushes and closes the current generation file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	if err := writeManifest(s.dir, s.manifest); err != nil {
		return err
	}
	err := s.cur.Close()
	s.cur = nil
	return err
}
