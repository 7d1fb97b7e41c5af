// Package compliance evaluates the per-entry retention and redaction
// rules. Failing rules are recorded as named flags on the entry, not
// enforced as rejections — the ledger's job is to document defects, and
// the one fatal case (chain linkage) is handled by the ledger itself.
package compliance

import (
	"regexp"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Flag names recorded in ComplianceStatus.Flags.
const (
	FlagRedactionIncomplete = "redaction_incomplete"
	FlagRetentionExpired    = "retention_expired"
	FlagChainLinkage        = "chain_linkage_mismatch"
)

// Patterns that must not survive upstream PII redaction. Matching text
// in a payload means the upstream sanitizer failed; the ledger records
// the defect rather than redacting on its own.
var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern      = regexp.MustCompile(`\b\d{3,4}[\s-]?\d{3,4}[\s-]?\d{3,4}\b`)
	longNumberPattern = regexp.MustCompile(`\b\d{8,}\b`)
)

// Checker evaluates the redaction and retention rules.
type Checker struct {
	retention time.Duration
}

// NewChecker creates a Checker with the given retention window.
func NewChecker(retention time.Duration) *Checker {
	return &Checker{retention: retention}
}

// Evaluate runs the redaction rule against a record and returns the
// flags for every failing rule. The retention rule is trivially
// satisfied at ingestion (a fresh entry is inside any window) and is
// applied to stored history via Revalidate; the chain-linkage rule is
// evaluated by the ledger at entry construction, where the chain head
// is visible.
func (c *Checker) Evaluate(rec *model.DecisionRecord) []string {
	var flags []string
	if !redactionComplete(rec.InputSummary) || !redactionComplete(rec.OutputSummary) {
		flags = append(flags, FlagRedactionIncomplete)
	}
	return flags
}

// Revalidate re-applies the retention rule to a stored entry.
func (c *Checker) Revalidate(e *model.AuditEntry, now time.Time) []string {
	var flags []string
	if !c.WithinRetention(e.Timestamp, now) {
		flags = append(flags, FlagRetentionExpired)
	}
	return flags
}

// WithinRetention reports whether a timestamp is inside the retention
// window relative to now.
func (c *Checker) WithinRetention(ts, now time.Time) bool {
	if c.retention <= 0 {
		return true
	}
	return ts.After(now.Add(-c.retention))
}

// Status folds flags into a ComplianceStatus. An empty flag list means
// all rules passed.
func Status(flags []string) model.ComplianceStatus {
	return model.ComplianceStatus{Flags: flags, Compliant: len(flags) == 0}
}

// redactionComplete reports whether text is free of the sensitive
// patterns the upstream sanitizer should have removed.
func redactionComplete(text string) bool {
	if text == "" {
		return true
	}
	return !emailPattern.MatchString(text) &&
		!phonePattern.MatchString(text) &&
		!longNumberPattern.MatchString(text)
}
