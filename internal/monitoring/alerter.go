package monitoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate     AlertType = "job_failure_rate"
	AlertProviderRestricted AlertType = "provider_restricted"
	AlertPendingBacklog     AlertType = "pending_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and posts alerts to a webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *resty.Client
	retry  resilience.RetryConfig
}

// AlerterOption configures an Alerter.
type AlerterOption func(*Alerter)

// WithWebhookRetry sets the retry policy for transient webhook failures.
func WithWebhookRetry(rc resilience.RetryConfig) AlerterOption {
	return func(a *Alerter) { a.retry = rc }
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig, opts ...AlerterOption) *Alerter {
	a := &Alerter{
		cfg: cfg,
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if snap.RecentFinished >= 5 && a.cfg.FailureRateThreshold > 0 && snap.RecentFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertJobFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Job failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %d jobs)",
				snap.RecentFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RecentFailed, snap.RecentFinished, snap.LookbackJobs,
			),
			Details: map[string]any{
				"failure_rate": snap.RecentFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RecentFailed,
				"finished":     snap.RecentFinished,
			},
			Timestamp: now,
		})
	}

	names := make([]string, 0, len(snap.RestrictedProviders))
	for name := range snap.RestrictedProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		until := snap.RestrictedProviders[name]
		alerts = append(alerts, Alert{
			Type:     AlertProviderRestricted,
			Severity: "medium",
			Message:  fmt.Sprintf("Provider %s is restricted until %s", name, until.UTC().Format(time.RFC3339)),
			Details: map[string]any{
				"provider": name,
				"until":    until.UTC(),
			},
			Timestamp: now,
		})
	}

	if a.cfg.PendingThreshold > 0 && snap.JobsPending > a.cfg.PendingThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message: fmt.Sprintf("%d jobs pending exceeds threshold %d",
				snap.JobsPending, a.cfg.PendingThreshold),
			Details: map[string]any{
				"pending":   snap.JobsPending,
				"threshold": a.cfg.PendingThreshold,
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

// sendWebhook posts a single alert to the webhook URL. 429 and 5xx
// responses are retried.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	return resilience.Do(ctx, a.retry, "webhook", "send_alert", func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(alert).
			Post(a.cfg.WebhookURL)
		if err != nil {
			return eris.Wrap(err, "monitoring: webhook request")
		}
		code := resp.StatusCode()
		switch {
		case code == 429 || code >= 500:
			return resilience.NewTransientError(eris.Errorf("monitoring: webhook returned status %d", code), code)
		case code >= 400:
			return eris.Errorf("monitoring: webhook returned status %d", code)
		}
		return nil
	})
}
