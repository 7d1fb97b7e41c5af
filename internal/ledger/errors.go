package ledger

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("ledger is closed")

// ValidationError rejects a decision record before any storage
// interaction. The record leaves no trace.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid decision record: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageUnavailableError wraps a backend failure that left the ledger
// consistent: the entry was not recorded anywhere.
type StorageUnavailableError struct {
	Backend string // "index" or "filestore"
	Err     error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Backend, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// PartialWriteError reports an entry that landed in one backend but not
// the other and could not be rolled back. The chain head was not
// advanced; a reconcile run is needed before the backends agree again.
type PartialWriteError struct {
	EntryID   string
	Succeeded string
	Failed    string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write of entry %s: %s succeeded, %s failed: %v",
		e.EntryID, e.Succeeded, e.Failed, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// ChainIntegrityError summarizes a failed verification sweep.
type ChainIntegrityError struct {
	From   int64
	To     int64
	Breaks int
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violated: %d broken links in positions [%d, %d]",
		e.Breaks, e.From, e.To)
}
