package jobs

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/providerstate"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// enrichmentStep finds a contact email for website prospects. The
// prospect's own pages are tried first; the lookup provider, when
// configured, is the fallback.
type enrichmentStep struct {
	prospectOps
	state    providerstate.Store
	website  provider.EmailFinder
	fallback provider.EmailFinder
}

func (r *Runner) newEnrichmentStep() (step, error) {
	website, err := r.providers.EmailFinder(provider.Website)
	if err != nil {
		return nil, err
	}
	s := &enrichmentStep{
		prospectOps: prospectOps{
			st:     r.st,
			law:    law{eligible: model.CanEnrich, fail: model.FailEnrichment},
			filter: model.ProspectFilter{SourceType: model.SourceWebsite, ScrapeStatus: model.ScrapeDiscovered},
			limit:  r.opts.DefaultLimit,
		},
		state:   r.state,
		website: website,
	}
	if hunter, err := r.providers.EmailFinder(provider.Hunter); err == nil {
		s.fallback = hunter
	}
	return s, nil
}

func (s *enrichmentStep) gate() string { return s.website.Name() }

func (s *enrichmentStep) execute(ctx context.Context, it item) (tally, error) {
	p, err := s.load(ctx, it.prospectID)
	if err != nil || p == nil {
		return skipped, err
	}

	email, scrapeErr := s.website.FindEmail(ctx, p.Domain)
	fromWebsite := true
	if scrapeErr != nil && errors.Is(scrapeErr, context.Canceled) {
		return tally{}, scrapeErr
	}
	if email == "" {
		if scrapeErr != nil {
			zap.L().Debug("jobs: website scrape failed, trying fallback",
				zap.String("domain", p.Domain), zap.Error(scrapeErr))
		}
		found, err := s.lookup(ctx, p.Domain, scrapeErr)
		if err != nil {
			return tally{}, err
		}
		email, fromWebsite = found, false
	}

	if email == "" {
		if err := model.ApplyNoEmail(p); err != nil {
			return skipped, nil
		}
		return s.commit(ctx, p, noResult)
	}
	if err := model.ApplyEnrichment(p, email, fromWebsite); err != nil {
		return skipped, nil
	}
	return s.commit(ctx, p, succeeded)
}

// lookup asks the fallback provider. Without one, a scrape error fails the
// item and a clean miss means no email.
func (s *enrichmentStep) lookup(ctx context.Context, domain string, scrapeErr error) (string, error) {
	if s.fallback == nil {
		return "", scrapeErr
	}
	restricted, err := s.state.IsRestricted(ctx, s.fallback.Name())
	if err != nil {
		zap.L().Warn("jobs: provider state unavailable, proceeding", zap.Error(err))
	}
	if restricted {
		return "", eris.Wrapf(errDeferred, "provider %s is restricted", s.fallback.Name())
	}

	email, err := s.fallback.FindEmail(ctx, domain)
	if err != nil {
		if resilience.KindOf(err) == resilience.KindNotConfigured {
			return "", scrapeErr
		}
		return "", err
	}
	return email, nil
}
