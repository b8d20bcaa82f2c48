package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBatchFailureRate AlertType = "batch_failure_rate"
	AlertFetchFailures    AlertType = "fetch_failures"
	AlertRowFailures      AlertType = "row_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.BatchesMerged + snap.BatchesFailed
	if finished > 0 && snap.BatchesFailed > 0 && snap.BatchFailureRate() >= a.cfg.BatchFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBatchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Batch failure rate %.1f%% reached threshold %.1f%% (%d failed / %d finished)",
				snap.BatchFailureRate()*100, a.cfg.BatchFailureThreshold*100,
				snap.BatchesFailed, finished,
			),
			Details: map[string]any{
				"failure_rate": snap.BatchFailureRate(),
				"threshold":    a.cfg.BatchFailureThreshold,
				"failed":       snap.BatchesFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.FetchFailureThreshold > 0 && snap.FetchFailures > a.cfg.FetchFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFetchFailures,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d resume fetches failed, threshold %d",
				snap.FetchFailures, a.cfg.FetchFailureThreshold,
			),
			Details: map[string]any{
				"fetch_failures": snap.FetchFailures,
				"threshold":      a.cfg.FetchFailureThreshold,
			},
			Timestamp: now,
		})
	}

	if snap.RowFailures > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRowFailures,
			Severity: "medium",
			Message:  fmt.Sprintf("%d of %d rows failed normalization", snap.RowFailures, snap.RowsNormalized),
			Details: map[string]any{
				"row_failures":    snap.RowFailures,
				"rows_normalized": snap.RowsNormalized,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
