package alert

import "github.com/mvoigt/decledger/internal/model"

// Dispatcher fans out alerts to matching webhook configurations.
type Dispatcher struct {
	configs []WebhookConfig
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []WebhookConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the alert to all webhooks whose severity list matches.
// Fires goroutines — does not block the caller.
func (d *Dispatcher) Dispatch(a model.Alert) {
	event := eventFrom(a)
	for _, cfg := range d.configs {
		if matches(cfg.Severities, a) {
			go Send(cfg, event)
		}
	}
}

// matches checks a config's severity filter. An empty filter matches
// only critical alerts.
func matches(severities []string, a model.Alert) bool {
	if len(severities) == 0 {
		return a.Severity == model.SeverityCritical
	}
	for _, s := range severities {
		if s == string(a.Severity) || s == a.Type {
			return true
		}
	}
	return false
}
