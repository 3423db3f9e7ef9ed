// Package monitoring reaps stale jobs and reports job health.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of job health.
type MetricsSnapshot struct {
	// Job counts by status across all jobs.
	JobsPending   int `json:"jobs_pending"`
	JobsRunning   int `json:"jobs_running"`
	JobsCompleted int `json:"jobs_completed"`
	JobsFailed    int `json:"jobs_failed"`

	// Most recent jobs (within the lookback count).
	RecentFinished int     `json:"recent_finished"`
	RecentFailed   int     `json:"recent_failed"`
	RecentFailRate float64 `json:"recent_fail_rate"`
	// ItemsFailed sums failed items of recent completed jobs.
	ItemsFailed int `json:"items_failed"`

	// RestrictedProviders maps provider name to restriction expiry.
	RestrictedProviders map[string]time.Time `json:"restricted_providers,omitempty"`

	LookbackJobs int       `json:"lookback_jobs"`
	CollectedAt  time.Time `json:"collected_at"`
}

// JobLister is the slice of store.Store the collector reads.
type JobLister interface {
	CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// RestrictionLister lists active provider restrictions.
type RestrictionLister interface {
	Restrictions(ctx context.Context) (map[string]time.Time, error)
}

// Collector gathers metrics from the job store and provider state.
type Collector struct {
	jobs  JobLister
	state RestrictionLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector. state may be nil.
func NewCollector(jobs JobLister, state RestrictionLister) *Collector {
	return &Collector{jobs: jobs, state: state, now: time.Now}
}

// Collect gathers a snapshot over the lookback most recent jobs.
func (c *Collector) Collect(ctx context.Context, lookback int) (*MetricsSnapshot, error) {
	if lookback <= 0 {
		lookback = 100
	}
	snap := &MetricsSnapshot{
		LookbackJobs: lookback,
		CollectedAt:  c.now().UTC(),
	}

	counts, err := c.jobs.CountJobsByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count jobs")
	}
	snap.JobsPending = counts[model.JobPending]
	snap.JobsRunning = counts[model.JobRunning]
	snap.JobsCompleted = counts[model.JobCompleted]
	snap.JobsFailed = counts[model.JobFailed]

	recent, err := c.jobs.ListJobs(ctx, store.JobFilter{Limit: lookback})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}
	for _, j := range recent {
		switch j.Status {
		case model.JobCompleted:
			snap.RecentFinished++
			if j.Result != nil {
				snap.ItemsFailed += j.Result.Failed
			}
		case model.JobFailed:
			snap.RecentFinished++
			snap.RecentFailed++
		}
	}
	if snap.RecentFinished > 0 {
		snap.RecentFailRate = float64(snap.RecentFailed) / float64(snap.RecentFinished)
	}

	if c.state != nil {
		restricted, err := c.state.Restrictions(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list restrictions")
		}
		if len(restricted) > 0 {
			snap.RestrictedProviders = restricted
		}
	}
	return snap, nil
}
