package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// mockStore implements the job store slices used by monitoring.
type mockStore struct {
	counts   map[model.JobStatus]int
	jobs     []model.Job
	countErr error
	listErr  error
	reset    int
	resetErr error
	cutoffs  []time.Time
	filters  []store.JobFilter
}

func (m *mockStore) CountJobsByStatus(context.Context) (map[model.JobStatus]int, error) {
	return m.counts, m.countErr
}

func (m *mockStore) ListJobs(_ context.Context, f store.JobFilter) ([]model.Job, error) {
	m.filters = append(m.filters, f)
	return m.jobs, m.listErr
}

func (m *mockStore) ResetStaleJobs(_ context.Context, cutoff time.Time) (int, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.reset, m.resetErr
}

type mockState struct {
	until map[string]time.Time
	err   error
}

func (m *mockState) Restrictions(context.Context) (map[string]time.Time, error) {
	return m.until, m.err
}
