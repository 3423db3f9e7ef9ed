package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5, PendingThreshold: 10})

	alerts := a.Evaluate(&MetricsSnapshot{
		RecentFinished: 10,
		RecentFailed:   2,
		RecentFailRate: 0.2,
		JobsPending:    3,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&MetricsSnapshot{
		RecentFinished: 20,
		RecentFailed:   8,
		RecentFailRate: 0.4,
		LookbackJobs:   100,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertJobFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_FailureRateNeedsSample(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&MetricsSnapshot{RecentFinished: 2, RecentFailed: 2, RecentFailRate: 1})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_RestrictedProvidersSorted(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	until := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	alerts := a.Evaluate(&MetricsSnapshot{RestrictedProviders: map[string]time.Time{
		"hunter":    until,
		"anthropic": until,
	}})
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertProviderRestricted, alerts[0].Type)
	assert.Equal(t, "anthropic", alerts[0].Details["provider"])
	assert.Contains(t, alerts[1].Message, "hunter is restricted until 2026-03-02T10:00:00Z")
}

func TestAlerter_Evaluate_PendingBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{PendingThreshold: 5})

	alerts := a.Evaluate(&MetricsSnapshot{JobsPending: 6})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPendingBacklog, alerts[0].Type)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertPendingBacklog, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertPendingBacklog, Severity: "medium", Message: "a"},
		{Type: AlertPendingBacklog, Severity: "medium", Message: "b"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}, WithWebhookRetry(fastRetry))
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertJobFailureRate}})
	assert.Equal(t, 0, sent)
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

func TestAlerter_SendAlerts_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}, WithWebhookRetry(fastRetry))
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertJobFailureRate}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}, WithWebhookRetry(fastRetry))
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertJobFailureRate}}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertJobFailureRate}}))
}
