package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/providerstate"
	"github.com/sells-group/outreach-cli/internal/store"
)

// followUpStep composes and sends the next message in each due thread.
type followUpStep struct {
	prospectOps
	state    providerstate.Store
	composer provider.Composer
	sender   provider.Sender
	policy   model.FollowUpPolicy
	now      func() time.Time
}

func newFollowUpStep(st store.Store, state providerstate.Store, c provider.Composer, snd provider.Sender, o Options) *followUpStep {
	policy, now := o.FollowUp, o.Now
	return &followUpStep{
		prospectOps: prospectOps{
			st: st,
			law: law{
				eligible: func(p *model.Prospect) error { return model.CanFollowUp(p, policy, now()) },
				fail:     func(p *model.Prospect, msg string) error { model.NoteDeferred(p, msg); return nil },
			},
			filter:    model.ProspectFilter{SendStatus: model.SendSent},
			limit:     o.DefaultLimit,
			postLimit: true,
		},
		state:    state,
		composer: c,
		sender:   snd,
		policy:   policy,
		now:      now,
	}
}

func (s *followUpStep) gate() string { return s.sender.Name() }

func (s *followUpStep) execute(ctx context.Context, it item) (tally, error) {
	p, err := s.load(ctx, it.prospectID)
	if err != nil || p == nil {
		return skipped, err
	}

	restricted, err := s.state.IsRestricted(ctx, s.composer.Name())
	if err != nil {
		zap.L().Warn("jobs: provider state unavailable, proceeding", zap.Error(err))
	}
	if restricted {
		return tally{}, eris.Wrapf(errDeferred, "provider %s is restricted", s.composer.Name())
	}

	req := draftRequest(p)
	req.FollowUp = p.FollowupsSent + 1
	req.PreviousBody = p.DraftBody
	if p.FinalBody != nil && *p.FinalBody != "" {
		req.PreviousBody = *p.FinalBody
	}
	d, err := s.composer.Compose(ctx, req)
	if err != nil {
		return tally{}, err
	}

	if _, err := s.sender.Send(ctx, provider.Message{
		To:       p.Email(),
		Subject:  replySubject(p.DraftSubject),
		Body:     d.Body,
		ThreadID: p.Thread(),
	}); err != nil {
		return tally{}, err
	}

	at := s.now()
	if err := model.ApplyFollowUp(p, d.Body, s.policy, at); err != nil {
		return skipped, nil
	}
	err = s.st.UpdateProspect(ctx, p)
	if err == nil {
		return succeeded, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return tally{}, err
	}

	// Delivered; record it on the fresh row or the next run sends it again.
	zap.L().Warn("jobs: prospect changed during follow-up, reapplying",
		zap.String("prospect_id", p.ID), zap.String("thread_id", p.Thread()))
	fresh, err := s.st.GetProspect(ctx, p.ID)
	if err != nil {
		return tally{}, err
	}
	if err := model.ApplyFollowUp(fresh, d.Body, s.policy, at); err != nil {
		zap.L().Warn("jobs: follow-up already recorded", zap.String("prospect_id", p.ID), zap.Error(err))
		return skipped, nil
	}
	return s.commit(ctx, fresh, succeeded)
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
