package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

const (
	requestTimeout  = 5 * time.Second
	defaultRetries  = 3
	criticalRetries = 5
)

var (
	httpClient = &http.Client{Timeout: requestTimeout}
	retryDelay = time.Second
)

// retryBudget sizes the delivery effort by severity. A critical alert
// has already been escalated into the chain; losing its notification is
// worse than a few extra seconds of backoff.
func retryBudget(event Event) int {
	if event.Severity == string(model.SeverityCritical) {
		return criticalRetries
	}
	return defaultRetries
}

// Send posts an alert event to a webhook endpoint. Transport errors and
// 5xx responses are retried with linear backoff up to the event's
// severity-dependent budget; 4xx responses fail immediately.
func Send(cfg WebhookConfig, event Event) error {
	body, err := formatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	budget := retryBudget(event)
	var lastErr error
	for attempt := 0; attempt < budget; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		// 5xx — retry
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", budget, lastErr)
}

// formatPayload builds the webhook body for the given format.
func formatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("decledger: %s", event.Type),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", event.Severity)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Entry:* %s", event.EntryID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Message:* %s", event.Message)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := event.Severity
	if severity == "" {
		severity = "info"
	}
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("decledger %s: %s", event.Type, event.Message),
			"severity": severity,
			"source":   "decledger",
			"custom_details": map[string]any{
				"entry_id":  event.EntryID,
				"value":     event.Value,
				"threshold": event.Threshold,
			},
		},
	}
	return json.Marshal(payload)
}
