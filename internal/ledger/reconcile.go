package ledger

import (
	"context"
)

// ReconcileReport lists the entries present in one backend but missing
// from the other.
type ReconcileReport struct {
	IndexOnly     []string `json:"index_only,omitempty"`
	FilestoreOnly []string `json:"filestore_only,omitempty"`
	Repaired      int      `json:"repaired"`
	Consistent    bool     `json:"consistent"`
}

// Reconcile compares the two backends entry by entry. With repair set,
// entries durable in the file store but missing from the index are
// re-inserted, and index rows with no file line behind them (the
// residue of a partial write whose rollback failed) are deleted — the
// file store is the durable record, so an unbacked index row documents
// a write that never completed and would block its position from being
// reused.
func (l *Ledger) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	indexIDs, err := l.idx.IDs(ctx)
	if err != nil {
		return nil, &StorageUnavailableError{Backend: "index", Err: err}
	}
	stored, err := l.files.ReadAll()
	if err != nil {
		return nil, &StorageUnavailableError{Backend: "filestore", Err: err}
	}

	inIndex := make(map[string]bool, len(indexIDs))
	for _, id := range indexIDs {
		inIndex[id] = true
	}
	inFiles := make(map[string]bool, len(stored))

	report := &ReconcileReport{}
	for _, e := range stored {
		inFiles[e.ID] = true
		if inIndex[e.ID] {
			continue
		}
		report.FilestoreOnly = append(report.FilestoreOnly, e.ID)
		if repair {
			if err := l.idx.Insert(ctx, e); err != nil {
				return report, err
			}
			report.Repaired++
		}
	}
	for _, id := range indexIDs {
		if inFiles[id] {
			continue
		}
		report.IndexOnly = append(report.IndexOnly, id)
		if repair {
			if err := l.idx.Delete(ctx, id); err != nil {
				return report, err
			}
			report.Repaired++
		}
	}

	missing := len(report.IndexOnly) + len(report.FilestoreOnly)
	report.Consistent = missing == report.Repaired
	return report, nil
}
