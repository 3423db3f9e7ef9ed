package jobs

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/store"
)

type draftingStep struct {
	prospectOps
	composer provider.Composer
	policy   model.DraftPolicy
}

func newDraftingStep(st store.Store, c provider.Composer, o Options) *draftingStep {
	verification := []model.VerificationStatus{model.VerificationVerified}
	if o.Draft.AllowUnverified {
		verification = append(verification, model.VerificationUnverified, model.VerificationPending)
	}
	hasEmail := true
	policy := o.Draft
	return &draftingStep{
		prospectOps: prospectOps{
			st: st,
			law: law{
				eligible: func(p *model.Prospect) error { return model.CanDraft(p, policy) },
				fail:     model.FailDraft,
			},
			filter: model.ProspectFilter{
				DraftStatus:        model.DraftPending,
				VerificationStatus: verification,
				HasEmail:           &hasEmail,
			},
			limit: o.DefaultLimit,
		},
		composer: c,
		policy:   policy,
	}
}

func (s *draftingStep) gate() string { return s.composer.Name() }

func (s *draftingStep) execute(ctx context.Context, it item) (tally, error) {
	p, err := s.load(ctx, it.prospectID)
	if err != nil || p == nil {
		return skipped, err
	}

	d, err := s.composer.Compose(ctx, draftRequest(p))
	if err != nil {
		return tally{}, err
	}
	if err := model.ApplyDraft(p, d.Subject, d.Body, s.policy); err != nil {
		return skipped, nil
	}
	return s.commit(ctx, p, succeeded)
}

func draftRequest(p *model.Prospect) provider.DraftRequest {
	domain := p.Domain
	if domain == "" {
		domain = p.Label()
	}
	return provider.DraftRequest{
		Domain:    domain,
		PageTitle: p.PageTitle,
		PageURL:   p.PageURL,
		Snippet:   p.Snippet,
	}
}
