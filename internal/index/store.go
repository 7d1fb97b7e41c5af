// Package index is the structured store: a SQLite database holding one
// row per audit entry with secondary indexes on timestamp, criticality,
// decision path and session. The full canonical entry JSON rides along
// in each row, so queries return exactly the bytes that were hashed.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mvoigt/decledger/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id            TEXT PRIMARY KEY,
	position      INTEGER NOT NULL UNIQUE,
	ts            INTEGER NOT NULL,
	criticality   INTEGER NOT NULL,
	decision_path TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	confidence    REAL NOT NULL,
	processing_ms REAL NOT NULL,
	compliant     INTEGER NOT NULL,
	checksum      TEXT NOT NULL,
	prev_hash     TEXT NOT NULL,
	entry_json    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_ts          ON audit_entries(ts);
CREATE INDEX IF NOT EXISTS idx_entries_criticality ON audit_entries(criticality);
CREATE INDEX IF NOT EXISTS idx_entries_path        ON audit_entries(decision_path);
CREATE INDEX IF NOT EXISTS idx_entries_session     ON audit_entries(session_id);
`

// Store wraps the SQLite database. Safe for concurrent use; the write
// path is additionally serialized by the ledger's write lock.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the index database at path and applies the
// schema. WAL mode keeps readers off the writer's back.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=FULL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert writes one entry row inside a transaction. The row and all its
// secondary index updates commit together; no entry is ever partially
// indexed.
func (s *Store) Insert(ctx context.Context, e *model.AuditEntry) error {
	data, err := model.EncodeEntry(e)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	compliant := 0
	if e.Compliance.Compliant {
		compliant = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, position, ts, criticality, decision_path, session_id,
			confidence, processing_ms, compliant, checksum, prev_hash, entry_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Position, e.Timestamp.UTC().UnixNano(), int(e.Criticality),
		e.Payload.DecisionPath, e.Payload.SessionID, e.Payload.Confidence,
		float64(e.Payload.ProcessingTime.Microseconds())/1000.0,
		compliant, e.Checksum, e.PrevHash, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry %s: %w", e.ID, err)
	}
	return nil
}

// Tail returns the checksum and position of the highest-position entry,
// used at startup to resume the chain. ok is false for an empty index.
func (s *Store) Tail(ctx context.Context) (checksum string, position int64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT checksum, position FROM audit_entries ORDER BY position DESC LIMIT 1`)
	if err := row.Scan(&checksum, &position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("read index tail: %w", err)
	}
	return checksum, position, true, nil
}

// Get returns the entry with the given id, or nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*model.AuditEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entry_json FROM audit_entries WHERE id = ?`, id)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return model.DecodeEntry([]byte(data))
}

// PositionOf resolves an entry id to its chain position. ok is false
// when the id is unknown.
func (s *Store) PositionOf(ctx context.Context, id string) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT position FROM audit_entries WHERE id = ?`, id)
	var pos int64
	if err := row.Scan(&pos); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve position of %s: %w", id, err)
	}
	return pos, true, nil
}

// Range returns entries with fromPos <= position <= toPos in chain
// order. toPos <= 0 means "to the end".
func (s *Store) Range(ctx context.Context, fromPos, toPos int64) ([]*model.AuditEntry, error) {
	query := `SELECT entry_json FROM audit_entries WHERE position >= ?`
	args := []any{fromPos}
	if toPos > 0 {
		query += ` AND position <= ?`
		args = append(args, toPos)
	}
	query += ` ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range scan: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan range row: %w", err)
		}
		e, err := model.DecodeEntry([]byte(data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range scan: %w", err)
	}
	return entries, nil
}

// Count returns the number of indexed entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// IDs returns every indexed entry id, used by the reconciliation sweep.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM audit_entries ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a single row by id. Used only to roll back the index
// half of a write whose file store half failed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// DeleteRange removes all rows with fromPos <= position <= toPos. Used
// only by the retention manager when an expired generation is deleted;
// the deletion is documented by a tombstone outside the chain.
func (s *Store) DeleteRange(ctx context.Context, fromPos, toPos int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE position >= ? AND position <= ?`,
		fromPos, toPos)
	if err != nil {
		return 0, fmt.Errorf("delete range [%d, %d]: %w", fromPos, toPos, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
