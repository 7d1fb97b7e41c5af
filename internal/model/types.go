// Package model defines the core types shared by the ledger: decision
// records as handed over by the upstream evaluation pipeline, the audit
// entries the ledger derives from them, and the chain bookkeeping types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Criticality is the four-tier severity assigned to an audit entry.
// The numeric values are stored in the index and compared with >=,
// so the order matters.
type Criticality int

const (
	CriticalityLow      Criticality = 1
	CriticalityMedium   Criticality = 2
	CriticalityHigh     Criticality = 3
	CriticalityCritical Criticality = 4
)

// String returns the lowercase tier name.
func (c Criticality) String() string {
	switch c {
	case CriticalityLow:
		return "low"
	case CriticalityMedium:
		return "medium"
	case CriticalityHigh:
		return "high"
	case CriticalityCritical:
		return "critical"
	default:
		return fmt.Sprintf("criticality(%d)", int(c))
	}
}

// ParseCriticality converts a tier name into a Criticality.
func ParseCriticality(s string) (Criticality, error) {
	switch s {
	case "low":
		return CriticalityLow, nil
	case "medium":
		return CriticalityMedium, nil
	case "high":
		return CriticalityHigh, nil
	case "critical":
		return CriticalityCritical, nil
	default:
		return 0, fmt.Errorf("unknown criticality %q", s)
	}
}

// MarshalJSON renders the tier name rather than the numeric value, so
// exported entries read the same way the CLI prints them.
func (c Criticality) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts both tier names and the numeric form.
func (c *Criticality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseCriticality(s)
		if perr != nil {
			return perr
		}
		*c = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("criticality must be a name or integer: %w", err)
	}
	if n < int(CriticalityLow) || n > int(CriticalityCritical) {
		return fmt.Errorf("criticality %d out of range", n)
	}
	*c = Criticality(n)
	return nil
}

// ModuleResult is an opaque summary produced by one upstream module.
// The ledger never interprets it beyond a few well-known boolean flags
// (drift_detected, emergency_mode).
type ModuleResult map[string]any

// DecisionRecord is the caller-owned input to the ledger. It is treated
// as immutable once submitted; Normalize is the only mutation and runs
// before the record is hashed.
type DecisionRecord struct {
	SessionID      string                  `json:"session_id"`
	DecisionPath   string                  `json:"decision_path"`
	InputSummary   string                  `json:"input_summary"`
	OutputSummary  string                  `json:"output_summary"`
	Confidence     float64                 `json:"confidence"`
	Violations     []string                `json:"violations"`
	ModuleResults  map[string]ModuleResult `json:"module_results,omitempty"`
	ProcessingTime time.Duration           `json:"processing_time_ns"`
}

// ComplianceStatus is the outcome of the per-entry compliance rules.
// Flags names every rule that failed; Compliant is the AND of all rules.
type ComplianceStatus struct {
	Flags     []string `json:"flags"`
	Compliant bool     `json:"compliant"`
}

// AuditEntry is one link in the hash chain. Owned exclusively by the
// ledger once created; never mutated after the checksum is computed.
type AuditEntry struct {
	ID            string           `json:"id"`
	Position      int64            `json:"position"`
	Timestamp     time.Time        `json:"timestamp"`
	Criticality   Criticality      `json:"criticality"`
	Compliance    ComplianceStatus `json:"compliance"`
	PayloadDigest string           `json:"payload_digest"`
	Checksum      string           `json:"checksum"`
	PrevHash      string           `json:"prev_hash"`
	Payload       DecisionRecord   `json:"payload"`
}

// HasViolations reports whether the recorded decision carried any
// violation tags.
func (e *AuditEntry) HasViolations() bool {
	return len(e.Payload.Violations) > 0
}

// Checkpoint is a periodically recorded (position, hash) pair used to
// bound the cost of re-verifying the chain.
type Checkpoint struct {
	Position  int64     `json:"position"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// ChainState is an immutable snapshot of the chain head. Readers get
// these through an atomically replaced pointer and never take the
// write lock.
type ChainState struct {
	LatestHash  string       `json:"latest_hash"`
	Length      int64        `json:"length"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
}

// QueryCriteria selects entries from the structured store. Zero values
// mean "no constraint".
type QueryCriteria struct {
	From           time.Time   `json:"from,omitempty"`
	To             time.Time   `json:"to,omitempty"`
	MinCriticality Criticality `json:"min_criticality,omitempty"`
	DecisionPath   string      `json:"decision_path,omitempty"`
	SessionID      string      `json:"session_id,omitempty"`
	HasViolations  bool        `json:"has_violations,omitempty"`
}

// AlertSeverity ranks operational alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is an ephemeral operational signal raised by the monitor. Alerts
// live in a bounded ring buffer; only critical ones are escalated into
// the chain as synthetic entries.
type Alert struct {
	Type      string        `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	EntryID   string        `json:"entry_id"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Value     float64       `json:"value,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
}
