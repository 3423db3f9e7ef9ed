package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StaleJobResetter marks running jobs without a recent heartbeat failed.
type StaleJobResetter interface {
	ResetStaleJobs(ctx context.Context, cutoff time.Time) (int, error)
}

// Reaper fails running jobs whose heartbeat is older than StaleAfter. A
// zero StaleAfter disables it.
type Reaper struct {
	jobs       StaleJobResetter
	staleAfter time.Duration
	now        func() time.Time
}

// NewReaper creates a Reaper.
func NewReaper(jobs StaleJobResetter, staleAfter time.Duration) *Reaper {
	return &Reaper{jobs: jobs, staleAfter: staleAfter, now: time.Now}
}

// Enabled reports whether a stale threshold is configured.
func (r *Reaper) Enabled() bool { return r.staleAfter > 0 }

// Reap resets stale jobs once and returns how many were failed.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	if !r.Enabled() {
		return 0, nil
	}
	n, err := r.jobs.ResetStaleJobs(ctx, r.now().Add(-r.staleAfter))
	if err != nil {
		return 0, eris.Wrap(err, "monitoring: reap stale jobs")
	}
	if n > 0 {
		zap.L().Warn("monitoring: failed stale running jobs",
			zap.Int("count", n), zap.Duration("stale_after", r.staleAfter))
	}
	return n, nil
}
