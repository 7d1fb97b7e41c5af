package filestore

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/mvoigt/decledger/internal/model"
)

// ReadGeneration streams one generation's entries in append order,
// decompressing transparently. Used by the reconciliation sweep and by
// degraded reads when the index is unavailable.
func (s *Store) ReadGeneration(g Generation) ([]*model.AuditEntry, error) {
	f, err := os.Open(s.resolve(g.Path))
	if err != nil {
		return nil, fmt.Errorf("open generation %d: %w", g.Seq, err)
	}
	defer f.Close()

	var r io.Reader = f
	if g.Compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open compressed generation %d: %w", g.Seq, err)
		}
		defer zr.Close()
		r = zr
	}

	var entries []*model.AuditEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		e, err := model.DecodeEntry(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("generation %d line %d: %w", g.Seq, line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan generation %d: %w", g.Seq, err)
	}
	return entries, nil
}

// ReadAll streams every stored entry across generations in chain order.
func (s *Store) ReadAll() ([]*model.AuditEntry, error) {
	var all []*model.AuditEntry
	for _, g := range s.Generations() {
		entries, err := s.ReadGeneration(g)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}
