package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
)

// Checker runs the reaper and alert checks periodically.
type Checker struct {
	reaper    *Reaper
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background checker. reaper may be nil.
func NewChecker(reaper *Reaper, collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		reaper:    reaper,
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval. It blocks until
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting job monitor",
		zap.Duration("interval", interval),
		zap.Bool("reaper", c.reaper != nil && c.reaper.Enabled()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("job monitor stopped")
			return
		}
		c.Check(ctx, log)

		select {
		case <-ctx.Done():
			log.Info("job monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check runs one reap and alert cycle and returns the snapshot, or nil
// when collection failed.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) *MetricsSnapshot {
	if c.reaper != nil {
		if _, err := c.reaper.Reap(ctx); err != nil {
			log.Error("monitoring: reaper failed", zap.Error(err))
		}
	}

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackJobs)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return snap
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap
}
