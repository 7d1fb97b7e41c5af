package index

import (
	"context"
	"fmt"

	"github.com/mvoigt/decledger/internal/model"
)

// Query selects entries matching the criteria, newest first, up to
// limit. Time range, criticality floor, path and session are pushed
// down to the indexed columns; the has-violations criterion is applied
// as a final linear filter over the decoded entries because violation
// tags live inside the payload.
func (s *Store) Query(ctx context.Context, c model.QueryCriteria, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT entry_json FROM audit_entries WHERE 1=1`
	var args []any

	if !c.From.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, c.From.UTC().UnixNano())
	}
	if !c.To.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, c.To.UTC().UnixNano())
	}
	if c.MinCriticality > 0 {
		query += ` AND criticality >= ?`
		args = append(args, int(c.MinCriticality))
	}
	if c.DecisionPath != "" {
		query += ` AND decision_path = ?`
		args = append(args, c.DecisionPath)
	}
	if c.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, c.SessionID)
	}
	query += ` ORDER BY ts DESC, position DESC`
	if !c.HasViolations {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		e, err := model.DecodeEntry([]byte(data))
		if err != nil {
			return nil, err
		}
		if c.HasViolations && !e.HasViolations() {
			continue
		}
		entries = append(entries, e)
		if len(entries) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return entries, nil
}

// Stats aggregates the figures the ledger summary reports.
type Stats struct {
	Total         int64
	ByCriticality map[model.Criticality]int64
	Compliant     int64
	AvgConfidence float64
	AvgProcessing float64 // milliseconds
}

// CollectStats computes summary statistics over the whole index.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByCriticality: make(map[model.Criticality]int64)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT criticality, COUNT(*) FROM audit_entries GROUP BY criticality`)
	if err != nil {
		return nil, fmt.Errorf("criticality breakdown: %w", err)
	}
	for rows.Next() {
		var crit int
		var n int64
		if err := rows.Scan(&crit, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		st.ByCriticality[model.Criticality(crit)] = n
		st.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(compliant), 0),
		       COALESCE(AVG(confidence), 0),
		       COALESCE(AVG(processing_ms), 0)
		FROM audit_entries`)
	if err := row.Scan(&st.Compliant, &st.AvgConfidence, &st.AvgProcessing); err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	return st, nil
}
