// Package alert fans ledger alerts out to webhook destinations.
package alert

import "github.com/mvoigt/decledger/internal/model"

// WebhookConfig defines one webhook alert destination.
type WebhookConfig struct {
	URL        string            `yaml:"url"        json:"url"`
	Format     string            `yaml:"format"     json:"format"`     // "generic", "slack", "pagerduty"
	Severities []string          `yaml:"severities" json:"severities"` // ["warning", "critical"]
	Headers    map[string]string `yaml:"headers"    json:"headers"`
}

// Event is the payload posted to webhook endpoints.
type Event struct {
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	EntryID   string  `json:"entry_id"`
	Message   string  `json:"message"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// eventFrom flattens a monitor alert into the wire payload.
func eventFrom(a model.Alert) Event {
	return Event{
		Timestamp: a.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Type:      a.Type,
		Severity:  string(a.Severity),
		EntryID:   a.EntryID,
		Message:   a.Message,
		Value:     a.Value,
		Threshold: a.Threshold,
	}
}
