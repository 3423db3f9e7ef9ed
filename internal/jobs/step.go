package jobs

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// tally is the contribution of one item to the job result.
type tally struct {
	succeeded int
	failed    int
	skipped   int
	noResult  int
}

var (
	succeeded = tally{succeeded: 1}
	skipped   = tally{skipped: 1}
	noResult  = tally{noResult: 1}
	failed    = tally{failed: 1}
)

func (t tally) addTo(r *model.JobResult) {
	r.Succeeded += t.succeeded
	r.Failed += t.failed
	r.Skipped += t.skipped
	r.NoResult += t.noResult
	r.Total += t.succeeded + t.failed + t.skipped + t.noResult
}

// item is one unit of work: a prospect or a search query.
type item struct {
	prospectID string
	query      string
}

func (it item) label() string {
	if it.prospectID != "" {
		return it.prospectID
	}
	return it.query
}

// step executes one job type. Errors returned by execute are provider
// errors and are classified by the runner.
type step interface {
	// gate is the provider whose restriction defers every item.
	gate() string
	targets(ctx context.Context, params model.JobParams) ([]item, error)
	execute(ctx context.Context, it item) (tally, error)
	// record notes a failed or deferred item on its prospect.
	record(ctx context.Context, it item, msg string, deferred bool)
}

// law is the transition law a prospect step is bound to.
type law struct {
	eligible func(p *model.Prospect) error
	fail     func(p *model.Prospect, msg string) error
}

// prospectOps implements selection, reload and commit for steps that work
// on existing prospects.
type prospectOps struct {
	st     store.Store
	law    law
	filter model.ProspectFilter
	limit  int
	// postLimit applies the limit after the eligibility check instead of
	// in the query.
	postLimit bool
}

// targets returns the eligible prospects in order. Explicit ids keep the
// supplied order; ineligible and missing ids are dropped.
func (o *prospectOps) targets(ctx context.Context, params model.JobParams) ([]item, error) {
	var candidates []*model.Prospect
	limit := o.limit
	if params.Limit > 0 {
		limit = params.Limit
	}

	if len(params.ProspectIDs) > 0 {
		ps, err := o.st.GetProspects(ctx, params.ProspectIDs)
		if err != nil {
			return nil, err
		}
		candidates = ps
		limit = 0
	} else {
		f := o.filter
		if params.SourceType != "" {
			f.SourceType = params.SourceType
		}
		if !o.postLimit {
			f.Limit = limit
		}
		ps, err := o.st.ListProspects(ctx, f)
		if err != nil {
			return nil, err
		}
		candidates = ps
	}

	out := make([]item, 0, len(candidates))
	for _, p := range candidates {
		if o.law.eligible(p) != nil {
			continue
		}
		out = append(out, item{prospectID: p.ID})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// load re-reads a prospect and re-checks eligibility. A nil prospect means
// the item changed since selection and is skipped.
func (o *prospectOps) load(ctx context.Context, id string) (*model.Prospect, error) {
	p, err := o.st.GetProspect(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if o.law.eligible(p) != nil {
		return nil, nil
	}
	return p, nil
}

// commit persists p. A version conflict skips the item.
func (o *prospectOps) commit(ctx context.Context, p *model.Prospect, onSuccess tally) (tally, error) {
	err := o.st.UpdateProspect(ctx, p)
	switch {
	case err == nil:
		return onSuccess, nil
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
		zap.L().Info("jobs: prospect changed concurrently, skipping",
			zap.String("prospect_id", p.ID), zap.Error(err))
		return skipped, nil
	default:
		return tally{}, err
	}
}

func (o *prospectOps) record(ctx context.Context, it item, msg string, deferred bool) {
	if it.prospectID == "" {
		return
	}
	log := zap.L().With(zap.String("prospect_id", it.prospectID))

	p, err := o.st.GetProspect(ctx, it.prospectID)
	if err != nil {
		log.Warn("jobs: reload prospect for error note", zap.Error(err))
		return
	}
	if deferred {
		model.NoteDeferred(p, msg)
	} else if err := o.law.fail(p, msg); err != nil {
		log.Info("jobs: prospect no longer failable", zap.Error(err))
		return
	}
	if err := o.st.UpdateProspect(ctx, p); err != nil {
		log.Warn("jobs: save prospect error note", zap.Error(err))
	}
}
