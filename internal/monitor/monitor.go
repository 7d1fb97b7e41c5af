// Package monitor watches a rolling window of recent entries and raises
// operational alerts when rates cross configured thresholds. Alerts are
// ephemeral (bounded ring buffer); critical-severity alerts are handed
// to an escalation callback so the ledger can chain a synthetic entry
// documenting the event.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

// Alert types the monitor emits.
const (
	AlertHighViolationRate = "high_violation_rate"
	AlertLowAvgConfidence  = "low_avg_confidence"
	AlertSlowProcessing    = "slow_processing"
	AlertCriticalEntry     = "critical_entry"
)

// alertBufferCap bounds the ring buffer of retained alerts.
const alertBufferCap = 100

// Thresholds configure the rolling-window metrics. A zero Window
// disables the monitor.
type Thresholds struct {
	Window           int
	ViolationRate    float64
	MinAvgConfidence float64
	MaxAvgProcessing time.Duration
}

// DefaultThresholds returns the built-in alert thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:           100,
		ViolationRate:    0.3,
		MinAvgConfidence: 0.5,
		MaxAvgProcessing: time.Second,
	}
}

// sample is the per-entry slice of data the window retains.
type sample struct {
	hasViolations bool
	confidence    float64
	processing    time.Duration
	criticality   model.Criticality
}

// Monitor holds the rolling window and the alert ring buffer.
type Monitor struct {
	mu         sync.Mutex
	thresholds Thresholds
	window     []sample
	next       int
	alerts     []model.Alert
	active     map[string]bool
	escalate   func(model.Alert)
}

// New creates a Monitor. escalate may be nil; when set it is invoked
// (outside the monitor's lock) for every critical-severity alert.
func New(t Thresholds, escalate func(model.Alert)) *Monitor {
	if t.Window <= 0 {
		t.Window = DefaultThresholds().Window
	}
	return &Monitor{
		thresholds: t,
		window:     make([]sample, 0, t.Window),
		active:     make(map[string]bool),
		escalate:   escalate,
	}
}

// SetThresholds swaps the limits, used by config hot-reload. The window
// size is fixed at construction: the ring's slots and eviction cursor
// depend on it, so the incoming value is ignored.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Window = m.thresholds.Window
	m.thresholds = t
}

// Observe folds a new entry into the window, evaluates every metric,
// and returns the alerts raised by this entry. Alerts are deduplicated
// per type: a metric alerts once when it crosses its threshold and arms
// again only after it recovers.
func (m *Monitor) Observe(e *model.AuditEntry) []model.Alert {
	m.mu.Lock()

	m.push(sample{
		hasViolations: e.HasViolations(),
		confidence:    e.Payload.Confidence,
		processing:    e.Payload.ProcessingTime,
		criticality:   e.Criticality,
	})

	var raised []model.Alert
	n := len(m.window)
	if n > 0 {
		violations := 0
		var confSum float64
		var procSum time.Duration
		for _, s := range m.window {
			if s.hasViolations {
				violations++
			}
			confSum += s.confidence
			procSum += s.processing
		}
		rate := float64(violations) / float64(n)
		avgConf := confSum / float64(n)
		avgProc := procSum / time.Duration(n)

		t := m.thresholds
		raised = m.evaluate(raised, e, AlertHighViolationRate, rate > t.ViolationRate,
			model.SeverityWarning, rate, t.ViolationRate,
			fmt.Sprintf("violation rate %.2f exceeds threshold %.2f over last %d entries", rate, t.ViolationRate, n))
		raised = m.evaluate(raised, e, AlertLowAvgConfidence, avgConf < t.MinAvgConfidence,
			model.SeverityWarning, avgConf, t.MinAvgConfidence,
			fmt.Sprintf("average confidence %.2f below threshold %.2f over last %d entries", avgConf, t.MinAvgConfidence, n))
		raised = m.evaluate(raised, e, AlertSlowProcessing, avgProc > t.MaxAvgProcessing,
			model.SeverityInfo, avgProc.Seconds(), t.MaxAvgProcessing.Seconds(),
			fmt.Sprintf("average processing time %s exceeds threshold %s", avgProc, t.MaxAvgProcessing))
	}

	// Per-entry escalation: every Critical entry alerts, regardless of
	// window rates and without dedup.
	if e.Criticality == model.CriticalityCritical {
		raised = append(raised, m.raise(e, AlertCriticalEntry,
			model.SeverityCritical, float64(e.Criticality), float64(model.CriticalityCritical),
			fmt.Sprintf("entry %s recorded with critical severity", e.ID)))
	}

	esc := m.escalate
	m.mu.Unlock()

	if esc != nil {
		for _, a := range raised {
			if a.Severity == model.SeverityCritical {
				esc(a)
			}
		}
	}
	return raised
}

// evaluate applies dedup and records an alert when crossed is true.
// Callers hold m.mu.
func (m *Monitor) evaluate(raised []model.Alert, e *model.AuditEntry, typ string,
	crossed bool, sev model.AlertSeverity, value, threshold float64, msg string) []model.Alert {

	if !crossed {
		m.active[typ] = false
		return raised
	}
	if m.active[typ] {
		return raised
	}
	m.active[typ] = true
	return append(raised, m.raise(e, typ, sev, value, threshold, msg))
}

// raise records one alert in the ring buffer. Callers hold m.mu.
func (m *Monitor) raise(e *model.AuditEntry, typ string, sev model.AlertSeverity,
	value, threshold float64, msg string) model.Alert {

	a := model.Alert{
		Type:      typ,
		Severity:  sev,
		EntryID:   e.ID,
		Timestamp: time.Now().UTC(),
		Message:   msg,
		Value:     value,
		Threshold: threshold,
	}
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > alertBufferCap {
		m.alerts = m.alerts[len(m.alerts)-alertBufferCap:]
	}
	return a
}

// push adds a sample to the fixed-size window, evicting the oldest.
// Callers hold m.mu.
func (m *Monitor) push(s sample) {
	if len(m.window) < m.thresholds.Window {
		m.window = append(m.window, s)
		return
	}
	m.window[m.next] = s
	m.next = (m.next + 1) % m.thresholds.Window
}

// Alerts returns a copy of the retained alerts, oldest first.
func (m *Monitor) Alerts() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
