package jobs

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/validate"
)

type verificationStep struct {
	prospectOps
	verifier provider.Verifier
}

func newVerificationStep(st store.Store, v provider.Verifier, o Options) *verificationStep {
	hasEmail := true
	return &verificationStep{
		prospectOps: prospectOps{
			st:  st,
			law: law{eligible: model.CanVerify, fail: model.FailVerification},
			filter: model.ProspectFilter{
				VerificationStatus: []model.VerificationStatus{model.VerificationUnverified, model.VerificationPending},
				HasEmail:           &hasEmail,
			},
			limit: o.DefaultLimit,
		},
		verifier: v,
	}
}

func (s *verificationStep) gate() string { return s.verifier.Name() }

func (s *verificationStep) execute(ctx context.Context, it item) (tally, error) {
	p, err := s.load(ctx, it.prospectID)
	if err != nil || p == nil {
		return skipped, err
	}

	// Malformed addresses never reach the provider.
	if !validate.IsPlausibleEmail(p.Email()) {
		if err := model.ApplyVerification(p, false, "invalid email format"); err != nil {
			return skipped, nil
		}
		return s.commit(ctx, p, failed)
	}

	v, err := s.verifier.Verify(ctx, p.Email())
	if err != nil {
		return tally{}, err
	}
	if err := model.ApplyVerification(p, v.Deliverable, v.Reason); err != nil {
		return skipped, nil
	}
	if !v.Deliverable {
		return s.commit(ctx, p, failed)
	}
	return s.commit(ctx, p, succeeded)
}
