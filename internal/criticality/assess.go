// Package criticality scores incoming decision records into the
// four-tier severity used across the ledger. The scorer is a pure
// function over the record and its compliance flags: no clock, no I/O,
// identical output for identical input.
package criticality

import (
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Score breakpoints mapping the accumulated weight to a tier.
const (
	scoreCritical = 80
	scoreHigh     = 50
	scoreMedium   = 20
)

// Confidence thresholds below which weight is added.
const (
	lowConfidence      = 0.5
	moderateConfidence = 0.7
)

// Module-result flags the scorer recognizes. They are opaque booleans
// supplied by upstream modules.
const (
	FlagDriftDetected = "drift_detected"
	FlagEmergencyMode = "emergency_mode"
)

// Weights are the per-signal score contributions. All fields are
// configurable; the zero value is not useful, start from DefaultWeights.
type Weights struct {
	Violation          int `yaml:"violation"`
	LowConfidence      int `yaml:"low_confidence"`
	ModerateConfidence int `yaml:"moderate_confidence"`
	ComplianceFlag     int `yaml:"compliance_flag"`
	SlowProcessing     int `yaml:"slow_processing"`
	VerySlowProcessing int `yaml:"very_slow_processing"`
	DriftDetected      int `yaml:"drift_detected"`
	EmergencyMode      int `yaml:"emergency_mode"`
}

// DefaultWeights returns the built-in signal weights.
func DefaultWeights() Weights {
	return Weights{
		Violation:          25,
		LowConfidence:      30,
		ModerateConfidence: 15,
		ComplianceFlag:     25,
		SlowProcessing:     10,
		VerySlowProcessing: 20,
		DriftDetected:      15,
		EmergencyMode:      30,
	}
}

// Assessor maps decision records to criticality tiers.
type Assessor struct {
	weights Weights
	ceiling time.Duration
}

// NewAssessor creates an Assessor. ceiling is the processing time above
// which the slow-processing weight applies; beyond twice the ceiling the
// very-slow weight applies instead.
func NewAssessor(w Weights, ceiling time.Duration) *Assessor {
	if ceiling <= 0 {
		ceiling = time.Second
	}
	return &Assessor{weights: w, ceiling: ceiling}
}

// Assess scores a record given the compliance flags already raised for
// it and returns the resulting tier plus the raw score.
func (a *Assessor) Assess(rec *model.DecisionRecord, complianceFlags []string) (model.Criticality, int) {
	score := 0

	score += len(rec.Violations) * a.weights.Violation

	switch {
	case rec.Confidence < lowConfidence:
		score += a.weights.LowConfidence
	case rec.Confidence < moderateConfidence:
		score += a.weights.ModerateConfidence
	}

	score += len(complianceFlags) * a.weights.ComplianceFlag

	switch {
	case rec.ProcessingTime > 2*a.ceiling:
		score += a.weights.VerySlowProcessing
	case rec.ProcessingTime > a.ceiling:
		score += a.weights.SlowProcessing
	}

	if rec.ModuleFlag(FlagDriftDetected) {
		score += a.weights.DriftDetected
	}
	if rec.ModuleFlag(FlagEmergencyMode) {
		score += a.weights.EmergencyMode
	}

	return tierFor(score), score
}

func tierFor(score int) model.Criticality {
	switch {
	case score >= scoreCritical:
		return model.CriticalityCritical
	case score >= scoreHigh:
		return model.CriticalityHigh
	case score >= scoreMedium:
		return model.CriticalityMedium
	default:
		return model.CriticalityLow
	}
}
