package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mvoigt/decledger/internal/compliance"
	"github.com/mvoigt/decledger/internal/model"
)

func sampleEntries() []*model.AuditEntry {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*model.AuditEntry{
		{
			ID: "e-001", Position: 1, Timestamp: base,
			Criticality: model.CriticalityLow,
			Compliance:  model.ComplianceStatus{Compliant: true},
			Checksum:    "sha256:001", PrevHash: "sha256:000",
			Payload: model.DecisionRecord{
				SessionID: "s-1", DecisionPath: "full_evaluation/approved",
				Confidence: 0.95, ProcessingTime: 120 * time.Millisecond,
			},
		},
		{
			ID: "e-002", Position: 2, Timestamp: base.Add(time.Minute),
			Criticality: model.CriticalityCritical,
			Compliance: model.ComplianceStatus{
				Flags: []string{compliance.FlagRedactionIncomplete},
			},
			Checksum: "sha256:002", PrevHash: "sha256:001",
			Payload: model.DecisionRecord{
				SessionID: "s-2", DecisionPath: "full_evaluation/denied",
				Confidence: 0.3, Violations: []string{"bias", "privacy"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"json", "csv", "compliance_report"} {
		if _, err := ParseFormat(ok); err != nil {
			t.Errorf("ParseFormat(%q) = %v", ok, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := WriteJSON(&buf, sampleEntries(), now); err != nil {
		t.Fatal(err)
	}

	var env Envelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Count != 2 || len(env.Entries) != 2 {
		t.Errorf("count = %d, entries = %d", env.Count, len(env.Entries))
	}
	if !env.ExportedAt.Equal(now) {
		t.Errorf("exported_at = %v", env.ExportedAt)
	}
	if env.Entries[1].Criticality != model.CriticalityCritical {
		t.Errorf("entry criticality lost: %v", env.Entries[1].Criticality)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleEntries()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("%d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || len(rows[0]) != len(csvHeader) {
		t.Errorf("bad header: %v", rows[0])
	}

	crit := rows[2]
	if crit[0] != "e-002" || crit[3] != "critical" {
		t.Errorf("row = %v", crit)
	}
	if crit[7] != "bias;privacy" {
		t.Errorf("violations column = %q", crit[7])
	}
	if crit[8] != "false" {
		t.Errorf("compliant column = %q", crit[8])
	}
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	r := BuildReport(sampleEntries(), now)

	if r.TotalEntries != 2 || r.CompliantCount != 1 {
		t.Errorf("totals: %d entries, %d compliant", r.TotalEntries, r.CompliantCount)
	}
	if r.ComplianceRate != 0.5 {
		t.Errorf("compliance rate = %f", r.ComplianceRate)
	}
	if r.ByCriticality["critical"] != 1 || r.ByCriticality["low"] != 1 {
		t.Errorf("by criticality: %v", r.ByCriticality)
	}
	if r.ViolationCounts["bias"] != 1 || r.ViolationCounts["privacy"] != 1 {
		t.Errorf("violation counts: %v", r.ViolationCounts)
	}
	if len(r.TopCritical) != 1 || r.TopCritical[0].ID != "e-002" {
		t.Errorf("top critical: %v", r.TopCritical)
	}
	if r.PeriodStart.After(r.PeriodEnd) {
		t.Errorf("period [%v, %v]", r.PeriodStart, r.PeriodEnd)
	}

	// 50% compliance, low confidence and 50% critical all trigger
	// recommendations, plus the redaction finding.
	if len(r.Recommendations) != 4 {
		t.Errorf("recommendations: %v", r.Recommendations)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	r := BuildReport(nil, time.Now())
	if r.TotalEntries != 0 || len(r.Recommendations) != 0 {
		t.Errorf("empty report: %+v", r)
	}
}

func TestWriteReportFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatReport, sampleEntries(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "compliance_rate") {
		t.Error("report output missing compliance_rate")
	}
}
