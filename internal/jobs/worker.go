package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Worker drains pending jobs with bounded concurrency. Items within one job
// stay sequential.
type Worker struct {
	runner        *Runner
	st            store.Store
	maxConcurrent int
}

// NewWorker creates a Worker running at most maxConcurrent jobs at once.
func NewWorker(runner *Runner, st store.Store, maxConcurrent int) *Worker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Worker{runner: runner, st: st, maxConcurrent: maxConcurrent}
}

// RunPending runs up to limit pending jobs, oldest first, and returns their
// final states. Jobs picked up elsewhere in the meantime are left alone. A
// store error in one job does not cancel the others; all errors are joined.
func (w *Worker) RunPending(ctx context.Context, limit int) ([]*model.Job, error) {
	pending, err := w.st.ListJobs(ctx, store.JobFilter{Status: model.JobPending, Limit: limit, OldestFirst: true})
	if err != nil {
		return nil, eris.Wrap(err, "jobs: list pending")
	}
	if len(pending) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		done []*model.Job
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(w.maxConcurrent)
	for _, j := range pending {
		id := j.ID
		g.Go(func() error {
			job, err := w.runner.Run(ctx, id)
			if errors.Is(err, ErrJobNotPending) {
				zap.L().Debug("jobs: already picked up", zap.String("job_id", id))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if job != nil {
				done = append(done, job)
			}
			if err != nil {
				errs = append(errs, eris.Wrapf(err, "jobs: run %s", id))
			}
			return nil
		})
	}
	_ = g.Wait()
	return done, errors.Join(errs...)
}
