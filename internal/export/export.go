// Package export renders audit entries for external consumption:
// a JSON envelope for downstream tooling, flattened CSV for
// spreadsheets, and an aggregated compliance report for auditors.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Format names a supported export format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatReport Format = "compliance_report"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatReport:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv, or compliance_report)", s)
	}
}

// Envelope wraps a JSON export so consumers can distinguish a complete
// export from a truncated file.
type Envelope struct {
	ExportedAt time.Time           `json:"exported_at"`
	Count      int                 `json:"count"`
	Entries    []*model.AuditEntry `json:"entries"`
}

// WriteJSON writes entries wrapped in an Envelope.
func WriteJSON(w io.Writer, entries []*model.AuditEntry, now time.Time) error {
	env := Envelope{
		ExportedAt: now.UTC(),
		Count:      len(entries),
		Entries:    entries,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}

// csvHeader is the fixed column set of CSV exports. Kept stable so
// existing spreadsheet imports keep working.
var csvHeader = []string{
	"id", "position", "timestamp", "criticality", "session_id",
	"decision_path", "confidence", "violations", "compliant",
	"compliance_flags", "processing_ms", "checksum", "prev_hash",
}

// WriteCSV flattens entries into one row each. Multi-valued fields
// (violations, compliance flags) are semicolon-joined.
func WriteCSV(w io.Writer, entries []*model.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			strconv.FormatInt(e.Position, 10),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.Criticality.String(),
			e.Payload.SessionID,
			e.Payload.DecisionPath,
			strconv.FormatFloat(e.Payload.Confidence, 'f', -1, 64),
			strings.Join(e.Payload.Violations, ";"),
			strconv.FormatBool(e.Compliance.Compliant),
			strings.Join(e.Compliance.Flags, ";"),
			strconv.FormatFloat(float64(e.Payload.ProcessingTime.Microseconds())/1000.0, 'f', 3, 64),
			e.Checksum,
			e.PrevHash,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv export: %w", err)
	}
	return nil
}

// Write renders entries in the requested format.
func Write(w io.Writer, format Format, entries []*model.AuditEntry, now time.Time) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, entries, now)
	case FormatCSV:
		return WriteCSV(w, entries)
	case FormatReport:
		return WriteReport(w, BuildReport(entries, now))
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
