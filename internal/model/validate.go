package model

import (
	"fmt"
	"sort"
)

// Validate checks the fields the ledger cannot record without. It runs
// before any storage interaction, so a failed validation leaves no trace.
func (r *DecisionRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("decision record is nil")
	}
	if r.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("confidence %.3f outside [0.0, 1.0]", r.Confidence)
	}
	if r.ProcessingTime < 0 {
		return fmt.Errorf("processing_time must not be negative")
	}
	return nil
}

// Normalize sorts and deduplicates the violation tags so that two records
// carrying the same tags in different order hash identically.
func (r *DecisionRecord) Normalize() {
	if len(r.Violations) < 2 {
		return
	}
	sort.Strings(r.Violations)
	out := r.Violations[:1]
	for _, v := range r.Violations[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	r.Violations = out
}

// ModuleFlag reports whether any module result carries the named flag
// set to true. Module results are opaque; this is the only interpretation
// the ledger applies to them.
func (r *DecisionRecord) ModuleFlag(name string) bool {
	for _, res := range r.ModuleResults {
		if v, ok := res[name]; ok {
			if b, ok := v.(bool); ok && b {
				return true
			}
		}
	}
	return false
}
