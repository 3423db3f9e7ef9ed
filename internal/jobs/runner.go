// Package jobs executes pipeline steps as persisted jobs. A job processes
// its items sequentially; distinct jobs may run concurrently.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/providerstate"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	// ErrJobNotFound is returned when the job id does not exist.
	ErrJobNotFound = eris.New("jobs: job not found")
	// ErrJobNotPending is returned when the job was already picked up.
	ErrJobNotPending = eris.New("jobs: job is not pending")

	// errDeferred skips an item because a secondary provider is restricted.
	errDeferred = eris.New("jobs: provider restricted")
)

// Options are the execution policies of a Runner.
type Options struct {
	// ItemDelay spaces consecutive items of one job.
	ItemDelay time.Duration
	// DefaultLimit caps filter-based target selection.
	DefaultLimit int
	Draft        model.DraftPolicy
	FollowUp     model.FollowUpPolicy
	// Composer is the provider name used for drafting and follow-ups.
	Composer string
	// LocationCode is the default SERP location for discovery.
	LocationCode int
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// Runner executes jobs against the store and the configured providers.
type Runner struct {
	st        store.Store
	state     providerstate.Store
	providers *provider.Registry
	opts      Options
}

// NewRunner creates a Runner.
func NewRunner(st store.Store, state providerstate.Store, providers *provider.Registry, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.Composer == "" {
		opts.Composer = provider.Anthropic
	}
	return &Runner{st: st, state: state, providers: providers, opts: opts}
}

// Run executes the pending job id to completion and returns its final
// state. A job that fails (bad params, missing provider, fatal provider
// error) is returned with status failed and a nil error; errors are only
// returned when the job could not be picked up or its state not saved.
func (r *Runner) Run(ctx context.Context, id string) (*model.Job, error) {
	job, err := r.st.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrJobNotFound, "job %s", id)
	}
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobPending {
		return nil, eris.Wrapf(ErrJobNotPending, "job %s is %s", id, job.Status)
	}

	job, err = r.st.StartJob(ctx, id)
	switch {
	case errors.Is(err, store.ErrJobNotPending):
		return nil, eris.Wrapf(ErrJobNotPending, "job %s", id)
	case errors.Is(err, store.ErrNotFound):
		return nil, eris.Wrapf(ErrJobNotFound, "job %s", id)
	case err != nil:
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "jobs"),
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
	)
	log.Info("jobs: started")

	result, runErr := r.execute(ctx, job, log)

	// Terminal state must be written even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		log.Error("jobs: failed", zap.Error(runErr))
		if errors.Is(runErr, store.ErrJobNotRunning) {
			// Reaped while running; the terminal state is already written.
			return r.st.GetJob(finishCtx, id)
		}
		if err := r.st.FinishJob(finishCtx, id, model.JobFailed, result, runErr.Error()); err != nil {
			return nil, eris.Wrap(err, "jobs: mark failed")
		}
	} else {
		log.Info("jobs: completed",
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
			zap.Int("total", result.Total),
		)
		if err := r.st.FinishJob(finishCtx, id, model.JobCompleted, result, ""); err != nil {
			return nil, eris.Wrap(err, "jobs: mark completed")
		}
	}
	return r.st.GetJob(finishCtx, id)
}

// execute runs the item loop. The returned result is non-nil whenever the
// loop started, so partial counts survive a failure.
func (r *Runner) execute(ctx context.Context, job *model.Job, log *zap.Logger) (*model.JobResult, error) {
	if err := ValidateParams(job.Type, job.Params); err != nil {
		return nil, err
	}
	s, err := r.buildStep(job)
	if err != nil {
		return nil, err
	}

	items, err := s.targets(ctx, job.Params)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: select targets")
	}
	log.Info("jobs: targets selected", zap.Int("count", len(items)))

	result := model.NewJobResult(job.Type)
	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.opts.ItemDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opts.ItemDelay), 1)
	}

	for _, it := range items {
		if err := limiter.Wait(ctx); err != nil {
			return result, eris.Wrap(err, "jobs: interrupted")
		}
		if err := r.st.TouchJob(ctx, job.ID); err != nil {
			return result, eris.Wrap(err, "jobs: heartbeat")
		}

		t, err := r.runItem(ctx, s, it, log)
		if err != nil {
			return result, err
		}
		t.addTo(result)
	}
	return result, nil
}

// runItem processes one item. Only fatal provider errors and store
// failures are returned.
func (r *Runner) runItem(ctx context.Context, s step, it item, log *zap.Logger) (tally, error) {
	log = log.With(zap.String("item", it.label()))

	restricted, err := r.state.IsRestricted(ctx, s.gate())
	if err != nil {
		log.Warn("jobs: provider state unavailable, proceeding", zap.Error(err))
	}
	if restricted {
		msg := fmt.Sprintf("deferred: provider %s is restricted", s.gate())
		log.Info("jobs: " + msg)
		s.record(ctx, it, msg, true)
		return skipped, nil
	}

	t, err := safeExecute(ctx, s, it)
	if err == nil {
		return t, nil
	}

	if errors.Is(err, errDeferred) {
		log.Info("jobs: item deferred", zap.Error(err))
		s.record(ctx, it, err.Error(), true)
		return skipped, nil
	}

	var pe *resilience.ProviderError
	isProvider := errors.As(err, &pe)
	switch kind := resilience.KindOf(err); {
	case isProvider && kind == resilience.KindRateLimited:
		name := pe.Provider
		if name == "" {
			name = s.gate()
		}
		if serr := r.state.SetRestricted(ctx, name, pe.RetryAfter); serr != nil {
			log.Warn("jobs: record provider restriction", zap.Error(serr))
		}
		log.Warn("jobs: provider rate limited, deferring", zap.String("provider", name), zap.Duration("retry_after", pe.RetryAfter))
		s.record(ctx, it, "deferred: "+err.Error(), true)
		return skipped, nil
	case isProvider && kind.Fatal():
		return tally{}, eris.Wrapf(err, "jobs: aborted at %s", it.label())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return tally{}, eris.Wrap(err, "jobs: interrupted")
	default:
		log.Warn("jobs: item failed", zap.Error(err))
		s.record(ctx, it, err.Error(), false)
		return failed, nil
	}
}

// safeExecute converts a panic inside a step into an item error.
func safeExecute(ctx context.Context, s step, it item) (t tally, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("jobs: panic in step", zap.Any("panic", rec), zap.Stack("stack"))
			t, err = tally{}, eris.Errorf("panic: %v", rec)
		}
	}()
	return s.execute(ctx, it)
}

// buildStep resolves the step for job and the providers it needs.
func (r *Runner) buildStep(job *model.Job) (step, error) {
	switch job.Type {
	case model.JobDiscovery:
		d, err := r.providers.Discoverer(provider.DataForSEO)
		if err != nil {
			return nil, err
		}
		return newDiscoveryStep(r.st, d, job.Params, r.opts), nil
	case model.JobSocialDiscovery:
		d, err := r.providers.Discoverer(provider.GoogleSearch)
		if err != nil {
			return nil, err
		}
		return newSocialDiscoveryStep(r.st, d, job.Params), nil
	case model.JobEnrichment:
		return r.newEnrichmentStep()
	case model.JobVerification:
		v, err := r.providers.Verifier(provider.Hunter)
		if err != nil {
			return nil, err
		}
		return newVerificationStep(r.st, v, r.opts), nil
	case model.JobDrafting:
		c, err := r.providers.Composer(r.opts.Composer)
		if err != nil {
			return nil, err
		}
		return newDraftingStep(r.st, c, r.opts), nil
	case model.JobSend:
		snd, err := r.providers.Sender(provider.Gmail)
		if err != nil {
			return nil, err
		}
		return newSendStep(r.st, snd, r.opts), nil
	case model.JobFollowUp:
		if !r.st.Columns().SupportsFollowUps() {
			return nil, eris.New("jobs: follow-ups need the thread_id and sequence_index columns; run migrate")
		}
		c, err := r.providers.Composer(r.opts.Composer)
		if err != nil {
			return nil, err
		}
		snd, err := r.providers.Sender(provider.Gmail)
		if err != nil {
			return nil, err
		}
		return newFollowUpStep(r.st, r.state, c, snd, r.opts), nil
	}
	return nil, eris.Errorf("jobs: unknown job type %q", job.Type)
}
