package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mvoigt/decledger/internal/compliance"
	"github.com/mvoigt/decledger/internal/model"
)

// topCriticalLimit caps the per-report list of worst entries.
const topCriticalLimit = 10

// Report is the auditor-facing aggregate over a set of entries.
type Report struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	PeriodStart     time.Time      `json:"period_start"`
	PeriodEnd       time.Time      `json:"period_end"`
	TotalEntries    int            `json:"total_entries"`
	ByCriticality   map[string]int `json:"by_criticality"`
	CompliantCount  int            `json:"compliant_count"`
	ComplianceRate  float64        `json:"compliance_rate"`
	ViolationCounts map[string]int `json:"violation_counts"`
	FlagCounts      map[string]int `json:"flag_counts"`
	AvgConfidence   float64        `json:"avg_confidence"`
	TopCritical     []CriticalItem `json:"top_critical"`
	Recommendations []string       `json:"recommendations"`
}

// CriticalItem is one high-severity entry surfaced in the report.
type CriticalItem struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Criticality  string    `json:"criticality"`
	SessionID    string    `json:"session_id"`
	DecisionPath string    `json:"decision_path"`
	Violations   []string  `json:"violations,omitempty"`
}

// BuildReport aggregates entries into a Report. The period is derived
// from the entries themselves, not the caller's query bounds, so the
// report documents what it actually covers.
func BuildReport(entries []*model.AuditEntry, now time.Time) *Report {
	r := &Report{
		GeneratedAt:     now.UTC(),
		TotalEntries:    len(entries),
		ByCriticality:   make(map[string]int),
		ViolationCounts: make(map[string]int),
		FlagCounts:      make(map[string]int),
	}

	var confSum float64
	var critical []*model.AuditEntry
	for _, e := range entries {
		if r.PeriodStart.IsZero() || e.Timestamp.Before(r.PeriodStart) {
			r.PeriodStart = e.Timestamp
		}
		if e.Timestamp.After(r.PeriodEnd) {
			r.PeriodEnd = e.Timestamp
		}
		r.ByCriticality[e.Criticality.String()]++
		if e.Compliance.Compliant {
			r.CompliantCount++
		}
		for _, v := range e.Payload.Violations {
			r.ViolationCounts[v]++
		}
		for _, f := range e.Compliance.Flags {
			r.FlagCounts[f]++
		}
		confSum += e.Payload.Confidence
		if e.Criticality >= model.CriticalityHigh {
			critical = append(critical, e)
		}
	}

	if len(entries) > 0 {
		r.ComplianceRate = float64(r.CompliantCount) / float64(len(entries))
		r.AvgConfidence = confSum / float64(len(entries))
	}

	// Worst first: criticality descending, then newest first.
	sort.Slice(critical, func(i, j int) bool {
		if critical[i].Criticality != critical[j].Criticality {
			return critical[i].Criticality > critical[j].Criticality
		}
		return critical[i].Timestamp.After(critical[j].Timestamp)
	})
	if len(critical) > topCriticalLimit {
		critical = critical[:topCriticalLimit]
	}
	for _, e := range critical {
		r.TopCritical = append(r.TopCritical, CriticalItem{
			ID:           e.ID,
			Timestamp:    e.Timestamp,
			Criticality:  e.Criticality.String(),
			SessionID:    e.Payload.SessionID,
			DecisionPath: e.Payload.DecisionPath,
			Violations:   e.Payload.Violations,
		})
	}

	r.Recommendations = recommend(r)
	return r
}

// recommend derives advisory findings from the aggregates. Rules are
// conservative: no finding below the stated thresholds.
func recommend(r *Report) []string {
	var recs []string
	if r.TotalEntries == 0 {
		return recs
	}
	if r.ComplianceRate < 0.95 {
		recs = append(recs, fmt.Sprintf(
			"compliance rate %.1f%% is below 95%%; review flagged entries before the next audit cycle",
			r.ComplianceRate*100))
	}
	if r.AvgConfidence < 0.7 {
		recs = append(recs, fmt.Sprintf(
			"average decision confidence %.2f is low; upstream evaluation may need recalibration",
			r.AvgConfidence))
	}
	criticalShare := float64(r.ByCriticality[model.CriticalityCritical.String()]) / float64(r.TotalEntries)
	if criticalShare > 0.05 {
		recs = append(recs, fmt.Sprintf(
			"%.1f%% of entries are critical severity; investigate the dominant violation types",
			criticalShare*100))
	}
	if n := r.FlagCounts[compliance.FlagRedactionIncomplete]; n > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d entries carried unredacted personal data; tighten redaction before records reach the ledger", n))
	}
	return recs
}

// WriteReport renders a Report as indented JSON.
func WriteReport(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write compliance report: %w", err)
	}
	return nil
}
